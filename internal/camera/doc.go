// Package camera implements capture-device acquisition and single-frame
// capture for the scanning bench.
//
// Two concerns live here, mirroring the physical workflow:
//
//   - Acquirer owns the device lifecycle. It opens a device through a tiered
//     fallback chain (environment-facing first, then user-facing, both at the
//     preferred resolution), guarantees at most one live handle, and releases
//     it idempotently on every exit path.
//
//   - FrameCapture produces one encoded still image from a held device. The
//     primary path asks the device for a still directly when it exposes that
//     primitive; the fallback path waits for the device to report readiness
//     (hard 5s timeout), lets the stream settle (>=500ms), then grabs one
//     preview frame and encodes it as JPEG at quality 90. One attempt per
//     invocation; re-entrant captures are rejected, never queued.
//
// Device acquisition failing on both tiers is non-fatal to a session: the
// caller stays usable through file import.
//
// Providers:
//   - GstProvider captures from V4L2 devices through a GStreamer pipeline.
//   - SyntheticProvider generates deterministic frames for tests, the
//     benchsim example and benches without cameras.
package camera
