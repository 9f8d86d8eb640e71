// Package wire implements the tagged value encoding every bridge message is
// built from.
//
// # Wire Form
//
// A value crosses the transport as a single JSON document:
//
//	{"type": <tag>, "value": <payload>}
//
// with the tags:
//
//	Tag         Payload
//	──────────────────────────────────────────────────────────
//	string      JSON string (valid text)
//	bytes       base64 string (binary-safe byte arrays)
//	integer     JSON number
//	double      JSON number, or "INF" / "-INF" / "NAN"
//	boolean     JSON bool
//	NULL        JSON null
//	array       JSON array, or JSON object in insertion order
//	object      {"class": name, "hash": handle}
//	resource    {"type": name, "hash": handle}
//	exception   {"value": <value>, "message": string}
//
// The transport is line-oriented and human-readable, so non-finite doubles
// travel as the sentinel strings above, distinct from any numeric value.
//
// # Arrays
//
// The worker's arrays are ordered mappings whose integer-like keys collapse
// to a canonical form. Array preserves that: one container with both ordinal
// and named access. A JSON list and the JSON object {"0": ..., "1": ...}
// decode to equivalent arrays.
//
// # Handles and Sessions
//
// object and resource payloads carry worker-issued handles with no meaning
// outside their session. The Codec delegates them to an Env (implemented by
// the bridge) so that decoding one handle twice yields the same proxy, and
// encoding a proxy owned by another session fails instead of leaking it.
//
// # Exceptions
//
// An exception value never decodes into a result. Codec.Decode returns it as
// a remote-fault error carrying the decoded foreign error value.
package wire
