// Package grpcserver exposes the exchange over gRPC.
//
// Messages are google.protobuf.Struct so the wire contract needs no
// generated code; service_desc.go plays the part protoc-gen-go-grpc
// would. Money travels as decimal strings, quantities as numbers.
package grpcserver
