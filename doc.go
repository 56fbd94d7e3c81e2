// Lexgraph answers legal questions by retrieving context from a knowledge
// graph and a vector store before asking a language model to write the
// answer.
//
// Each question runs through a small state machine. An entry router decides
// whether retrieval is needed at all. A subquery node breaks the question
// into focused sub-questions. The search nodes turn them into graph queries
// or similarity searches, and a router picks the next step until the answer
// node writes the reply. A depth ceiling bounds the loop. Malformed generated
// graph queries are recorded and skipped instead of failing the turn.
//
// # Packages
//
//   - graph: the typed state machine engine (nodes, conditional edges,
//     listeners, tracing, Mermaid and DOT export)
//   - orchestrator: the retrieval loop built on graph
//   - backend: the FalkorDB graph client, graph question answering and
//     vector search adapters
//   - llm: structured decisions and free-text generation over go-openai or
//     langchaingo
//   - history: chat transcripts in memory, Redis, PostgreSQL or SQLite
//   - progress: status notifications over WebSocket, Redis pub/sub or logs
//   - server, observability, config, app: the HTTP API, Prometheus metrics,
//     YAML and environment settings, and the wiring between them
//
// # Quick Start
//
//	export OPENAI_API_KEY=sk-...
//	lexgraph serve --config lexgraph.yaml
//
//	curl -s localhost:8080/v1/chat/case-42 \
//		-d '{"question":"Which articles regulate appeals?"}'
//
// Or ask once from the terminal:
//
//	lexgraph ask --session case-42 "Which articles regulate appeals?"
//
// Print the state machine:
//
//	lexgraph graph --format mermaid
package lexgraph // import "github.com/smallnest/lexgraph"
