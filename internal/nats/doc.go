// Package nats provides the camera command channel over an embedded NATS
// server, so other processes can drive a running camcore.
//
// # Architecture
//
//   - Server: embedded NATS server running in the camcore process
//   - Bridge: answers command requests through the dispatcher and
//     republishes event bus traffic
//   - CommandClient: request/reply client used by `camcore call`
//
// # Subject Hierarchy
//
//	camcore.rpc.{method}           # command request (client → server), reply expected
//	camcore.events.session         # session state transitions
//	camcore.events.preview         # preview requests reaching the hardware
//	camcore.events.photo.captured  # resolved photos
//	camcore.events.photo.failed    # failed photos
//	camcore.events.sensor          # sensor switches
//	camcore.events.listener        # listener failures
//	camcore.events.log             # warn and error log lines
//
// Commands use core NATS request/reply with a queue group, so one responder
// answers each request. Events are fire-and-forget.
//
// # Debugging with nats CLI
//
// Initialize and start the back camera:
//
//	nats req camcore.rpc.checkPermissions ''
//	nats req camcore.rpc.init '{"args":{"sensor":"BACK"}}'
//	nats req camcore.rpc.start ''
//
// Take a photo and zoom:
//
//	nats req camcore.rpc.setZoom '{"args":{"zoom":2.0}}'
//	nats req camcore.rpc.takePhoto '{"args":{"path":"/tmp/a.jpg"}}' --timeout 10s
//
// Watch camera events:
//
//	nats sub "camcore.events.>" | jq .
//
// # Message Formats
//
// CommandMessage (camcore.rpc.{method}):
//
//	{
//	  "args": {"width": 1280, "height": 720},
//	  "timestamp": "2025-01-27T10:30:00Z"
//	}
//
// ReplyMessage:
//
//	{"ok": true, "result": {"width": 1280, "height": 720}}
//	{"ok": false, "error": {"code": "ZOOM_OUT_OF_RANGE", "message": "zoom ratio out of range", "details": "10.00 not in [1.00, 4.00]"}}
//
// EventMessage (camcore.events.{name}):
//
//	{
//	  "name": "photo.captured",
//	  "data": {"job_id": "…", "camera_id": "0", "sensor": "BACK", "path": "/tmp/a.jpg", "timestamp": "…"}
//	}
package nats
