package domain

// ChannelMessage is one Slack message considered for indexing, either by a
// channel sync run or an explicit "add to assistant" action.
type ChannelMessage struct {
	ChannelID   string
	ChannelName string
	UserID      string
	UserName    string
	Text        string

	// TS is the Slack message timestamp, seconds with a fractional part.
	TS string

	Permalink string

	// AutoIndexed marks messages picked up by the channel sync rather
	// than added by hand.
	AutoIndexed bool
}

// AnswerSource describes one retrieved document backing an answer.
type AnswerSource struct {
	Title string
	Link  string
}

// Answer is the assistant's reply to a question.
type Answer struct {
	Text    string
	Sources []AnswerSource
}
