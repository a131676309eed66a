package handler

type sendMessageRequest struct {
	Sender   string `json:"sender"   validate:"required"`
	Receiver string `json:"receiver" validate:"required"`
	Message  string `json:"message"  validate:"required"`
}

// clearRequest is read from the JSON body or the query string.
type clearRequest struct {
	Sender   string `json:"sender"   query:"sender"`
	Receiver string `json:"receiver" query:"receiver"`
}

type clearResponse struct {
	OK      bool  `json:"ok"`
	Deleted int64 `json:"deleted"`
}
