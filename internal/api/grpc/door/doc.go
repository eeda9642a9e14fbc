// Package door implements the gRPC transport of the door actuator.
//
// The service is declared by hand over protobuf well-known types, so no
// generated code is needed on either side:
//
//	service dooractuator.v1.DoorService {
//	  rpc RequestRun(google.protobuf.StringValue) returns (google.protobuf.Duration);
//	  rpc GetStatus(google.protobuf.Empty) returns (google.protobuf.Struct);
//	  rpc Abort(google.protobuf.Empty) returns (google.protobuf.BoolValue);
//	  rpc ListSequences(google.protobuf.Empty) returns (google.protobuf.Struct);
//	}
package door
