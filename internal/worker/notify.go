package worker

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给客户端）。
// 注意：这里的字段名与客户端解析保持一致。
type PDFGenerationNotifyMessage struct {
	Status        string `json:"status"`
	CVID          uint   `json:"cv_id"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}
