package domain

// KeyPrefix namespaces every key matsearch writes.
const KeyPrefix = "matsearch:"
