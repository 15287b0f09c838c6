package solana

// Endpoint is the JSON-RPC URL of a node.
type Endpoint string

// EndpointLocal is where a node started with the default config listens.
const EndpointLocal Endpoint = "http://localhost:8899"
