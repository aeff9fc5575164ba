/*
Package worker implements the build worker: an outbound control connection
that keeps one unit of demand outstanding per pool slot and executes each
assigned order end to end.

On connect, the worker issues one OrderAssign per slot (CPU count by
default). Assigned orders are submitted to a fixed-size pool; the task
performs all git and filesystem I/O for its order. When a build finishes,
pass or fail or error, the worker pushes OrderComplete so the server never
leaks an assignment, then registers fresh demand for the freed slot.

Build failures (non-zero step exits) are not errors; they are published as
FAIL reports by the executor. Executor errors are logged and still
complete the order on the server.
*/
package worker
