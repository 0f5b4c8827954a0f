// Package command batches outbound device property writes.
//
// Entities never publish directly. Each action is translated into one or
// more (uuid, key, value) writes and handed to a Buffer, which coalesces
// them and publishes a single devices.control message per flush interval:
//
//	Entity.RequestStateChange → Buffer.Submit → (50ms) → Buffer.Flush → Publisher
//
// Two bounds (distinct devices, writes since the last flush) cap a batch.
// A Submit that would exceed them parks on a channel closed by the next
// flush, and gives up when its context ends. SubmitAll does the same for a
// group of writes to one device, which is accepted whole or not at all.
//
// A batch whose publish fails, typically because the bus is still
// connecting, is merged back and goes out with the next flush.
package command
