// Package proto holds the protobuf sources for the rugflow v1 API.
// Generated Go lives under gen/proto and is rebuilt with go generate.
package proto

//go:generate protoc --proto_path=. --go_out=../gen/proto --go_opt=paths=source_relative --go-grpc_out=../gen/proto --go-grpc_opt=paths=source_relative rugflow/v1/rugflow.proto
