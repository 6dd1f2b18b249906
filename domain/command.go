package domain

// SendCommand is a sending intent as received from a client connection.
// Target is a user id for DIRECT and a channel id for CHANNEL.
// A command is acceptable with an empty Body as long as an attachment
// reference is present.
type SendCommand struct {
	Kind       Kind   `validate:"required,oneof=DIRECT CHANNEL"`
	Target     string `validate:"required"`
	Body       string
	Attachment string
}
