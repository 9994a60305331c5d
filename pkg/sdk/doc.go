// Package matsearch embeds the material search engine in a Go program
// without running the HTTP server.
//
// The client connects to Redis with the search module, encodes text and
// images through an OpenAI-compatible provider and searches the material
// index locally. When a remote search service is configured it is tried
// first and the local path serves as fallback.
//
//	client, _ := matsearch.New(ctx,
//	    matsearch.WithRedis("localhost:6379", ""),
//	    matsearch.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "", "text-embedding-3-small", 384),
//	)
//	defer client.Close()
//
//	res, _ := client.Search(ctx, matsearch.KindDomain, matsearch.SearchParams{
//	    Query:  "waterproof flooring",
//	    Domain: "interior_design",
//	})
//
// Conversational searches carry a SessionID; the client keeps the
// session context between calls.
package matsearch
