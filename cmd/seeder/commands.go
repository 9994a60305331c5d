package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/matsearch/internal/config"
	dbRedis "github.com/kailas-cloud/matsearch/internal/db/redis"
	"github.com/kailas-cloud/matsearch/internal/domain/concept"
	conceptrepo "github.com/kailas-cloud/matsearch/internal/repository/concept"
	creditsrepo "github.com/kailas-cloud/matsearch/internal/repository/credits"
	materialrepo "github.com/kailas-cloud/matsearch/internal/repository/material"
	openaiEnc "github.com/kailas-cloud/matsearch/internal/transport/openai"
)

// env bundles the connections a seeding command needs.
type env struct {
	cfg   config.Config
	store *dbRedis.Store
}

func openEnv(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("env"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &env{cfg: cfg, store: store}, nil
}

func (e *env) close() { e.store.Close() }

func (e *env) encoder() *openaiEnc.Encoder {
	return openaiEnc.NewEncoder(&openaiEnc.Config{
		APIKey:     e.cfg.Embedding.APIKey,
		BaseURL:    e.cfg.Embedding.BaseURL,
		TextModel:  e.cfg.Embedding.TextModel,
		ImageModel: e.cfg.Embedding.ImageModel,
		Dimensions: e.cfg.Embedding.Dimensions,
		Provider:   "openai",
	})
}

func (e *env) indexOptions() materialrepo.IndexOptions {
	return materialrepo.IndexOptions{
		Dimensions:  e.cfg.Embedding.Dimensions,
		M:           e.cfg.Storage.HNSWM,
		EFConstruct: e.cfg.Storage.HNSWEFConstruct,
	}
}

func indexesCommand(c *cli.Context) error {
	ctx := context.Background()
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	prefix := e.cfg.Storage.KeyPrefix
	if err := materialrepo.New(e.store, prefix).EnsureIndex(ctx, e.indexOptions()); err != nil {
		return err
	}
	if err := conceptrepo.New(e.store, prefix).EnsureIndex(ctx, conceptrepo.IndexOptions(e.indexOptions())); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "indexes ready")
	return nil
}

func conceptsCommand(c *cli.Context) error {
	ctx := context.Background()
	seeds, err := readSeed(c.String("file"), parseConcepts)
	if err != nil {
		return err
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	repo := conceptrepo.New(e.store, e.cfg.Storage.KeyPrefix)
	if err := repo.EnsureIndex(ctx, conceptrepo.IndexOptions(e.indexOptions())); err != nil {
		return err
	}
	enc := e.encoder()

	for _, s := range seeds {
		emb, err := enc.Embed(ctx, s.Term)
		if err != nil {
			return fmt.Errorf("embed concept %q: %w", s.Term, err)
		}
		cpt, err := concept.New(s.Term, s.Domain, emb.Embedding, s.RelatedTerms, s.Popularity)
		if err != nil {
			return err
		}
		if _, err := repo.Upsert(ctx, cpt); err != nil {
			return fmt.Errorf("store concept %q: %w", s.Term, err)
		}
	}
	fmt.Fprintf(c.App.Writer, "seeded %d concepts\n", len(seeds))
	return nil
}

func materialsCommand(c *cli.Context) error {
	ctx := context.Background()
	materials, err := readSeed(c.String("file"), parseMaterials)
	if err != nil {
		return err
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	repo := materialrepo.New(e.store, e.cfg.Storage.KeyPrefix)
	if err := repo.EnsureIndex(ctx, e.indexOptions()); err != nil {
		return err
	}
	enc := e.encoder()

	for _, m := range materials {
		emb, err := enc.Embed(ctx, m.Text())
		if err != nil {
			return fmt.Errorf("embed material %q: %w", m.Name, err)
		}
		if _, err := repo.Upsert(ctx, m, emb.Embedding); err != nil {
			return fmt.Errorf("store material %q: %w", m.Name, err)
		}
	}
	fmt.Fprintf(c.App.Writer, "seeded %d materials\n", len(materials))
	return nil
}

func creditsCommand(c *cli.Context) error {
	units := c.Int64("units")
	if units <= 0 {
		return fmt.Errorf("units must be greater than 0")
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	repo := creditsrepo.New(e.store, e.cfg.Storage.KeyPrefix, e.cfg.Metering.DefaultGrant, 0)
	total, err := repo.Grant(context.Background(), c.String("user"), units)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "granted %d credits to %s (total granted %d)\n", units, c.String("user"), total)
	return nil
}

func readSeed[T any](path string, parse func([]byte) (T, error)) (T, error) {
	var zero T
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return zero, fmt.Errorf("read seed file: %w", err)
	}
	return parse(data)
}
