/*
Package protocol defines the framed JSON wire protocol spoken between the
server, order-creating clients and workers.

Each frame is a single UTF-8 JSON document. Frames end with the byte pair
LF VT (0x0A 0x0B); the server consumes frames on the vertical tab and
workers on the newline, with either side stripping the sibling terminator
before decoding.

Payload shapes:

	{"command": Name, "params": {...}}     client -> server
	{"event": Name, "params": {...}}       server -> client
	{"order": {...}}                       server -> client (assignment)
	{"error": Kind, "message": "..."}      server -> client

Command names are case-insensitive; numeric names are stringified before
lookup. Error kinds are ServerError, UnhandledServerError, ClientError,
CommandError and ParamError.
*/
package protocol
