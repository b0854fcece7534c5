package entity

import "time"

// LogMessage is one log record mirrored to the database.
type LogMessage struct {
	Time     time.Time `json:"time" bson:"time"`
	Level    string    `json:"level" bson:"level"`
	Category string    `json:"category" bson:"category"`
	Text     string    `json:"text" bson:"text"`
	Error    string    `json:"error,omitempty" bson:"error,omitempty"`
}

func (l *LogMessage) DataType() string {
	return "log_message"
}
