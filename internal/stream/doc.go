// Package stream implements the client side of the narrative streaming protocol.
//
// A streaming exchange is a single HTTP POST whose response body is a sequence of
// newline-delimited JSON records:
//
//	{"type":"start","game_id":"..."}
//	{"type":"progress","step":"character_created"}
//	{"type":"chunk","content":"partial text"}
//	{"type":"complete","next_prompts":["...","..."]}
//	{"type":"error","message":"..."}
//
// The package is layered leaves first:
//
//   - Decoder turns a byte stream into complete text lines, carrying partial
//     lines and partial UTF-8 sequences across read boundaries.
//   - ParseRecord turns one line into a Record (a closed set of record types).
//   - Dispatch routes a Record to the matching callback in Handlers.
//   - Session owns one HTTP exchange, pumps Decoder into Dispatch and settles
//     the exchange exactly once through OnComplete or OnError.
package stream
