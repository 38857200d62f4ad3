// Package schema compiles protocol schema files into the generated id
// table of package protocol.
//
// A schema directory holds one JSON file per category:
//
//	{"category": "net", "offset": 100, "messages": ["Ping", "Pong"]}
//
// Message ids are the category offset plus the message's index. Ranges of
// different categories must not overlap.
package schema
