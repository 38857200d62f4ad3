// Package protocol holds the spire message types and the id table the
// dispatcher decodes with.
//
// Ids are assigned per category: each category in schema/*.json has a base
// offset and its messages take consecutive ids from it in declaration
// order. ids_gen.go is produced by cmd/protogen; message bodies use the
// protobuf wire encoding.
//
//go:generate go run ../../cmd/protogen --schema ../../schema --out ids_gen.go
package protocol
