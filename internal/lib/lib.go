// Package lib holds the infrastructure that does not belong to a single
// layer.
//
// Subpackages:
//   - cache: Redis/in-memory read-through cache and key scheme
//   - email: templated transactional email over Resend or SMTP
//   - health: dependency probes and the periodic checker
//   - hub: per-owner server-sent events with a Redis relay
//   - imaging: avatar downscaling
//   - job: Asynq workers and scheduler
//   - payment: Razorpay orders and signature checks
//   - storage: ImageKit and S3 file storage
//   - token: JWT pairs and the revocation blacklist
//   - utils: money, time and percentage formatting
package lib
