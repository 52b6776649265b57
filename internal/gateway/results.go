package gateway

import (
	"encoding/json"

	"go.uber.org/zap"

	"gateway/internal/models"
)

// HandleResult consumes one action request coming back from a processing
// module and hands it to the queue manager. Malformed payloads are logged
// and dropped; a poison message must never wedge the results queue.
func (d *Dispatcher) HandleResult(body []byte) {
	var req models.ActionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		d.logger.Warn("Discarding malformed action request", zap.Error(err),
			zap.ByteString("body", body))
		return
	}
	if req.Action == "" {
		d.logger.Warn("Discarding action request without an action", zap.ByteString("body", body))
		return
	}
	d.queues.Enqueue(&req)
}

// HandleFanout consumes one broadcast control message. The fanout channel is
// reserved for cross-instance coordination; nothing is acted on yet.
func (d *Dispatcher) HandleFanout(body []byte) {
	d.logger.Debug("Fanout message received", zap.ByteString("body", body))
}
