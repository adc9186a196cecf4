// Package wire implements the simulator link message schema.
//
// Client sends bare protobuf encoded SimuRequest in every datagram.
// Simulator datagrams start with one tag byte followed by protobuf body:
// 'R' SimuResponse, 'N' SimuNotification.
//
// Schema, field numbers in parens:
//
//	SimuRequest oneof { connect(1){} disconnect(2){} list_sensors(3){}
//	  update_sensor(4){ id(1) uint32; oneof value { uint_value(2) uint64; int_value(3) int64;
//	    float_value(4) float; double_value(5) double; string_value(6) string; bool_value(7) bool } }
//	  ping(5){ number(1) uint32 } }
//	SimuResponse oneof { connect(1){ accept(1) bool } disconnect(2){}
//	  list_sensors(3){ repeated sensors(1) Sensor } update_sensor(4){ success(1) bool }
//	  ping(5){ number(1) uint32 } }
//	Sensor { id(1) uint32; name(2) string; type(3) enum; value_type(4) enum }
//	SimuNotification { type(1) string; values(2) map<string, Value> }
//	Value oneof { uint_value(1) ... bool_value(6) } same order as update_sensor
package wire
