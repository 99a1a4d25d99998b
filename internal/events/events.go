package events

// Topic names are part of the wire contract with downstream consumers.
type Topic string

const (
	TopicPost    Topic = "POST_EVENT"
	TopicComment Topic = "COMMENT_EVENT"
	TopicLike    Topic = "LIKE_EVENT"
)

// Topics lists every topic this service publishes to.
func Topics() []Topic {
	return []Topic{TopicPost, TopicComment, TopicLike}
}

type EventType string

const (
	PostCreated    EventType = "POST_CREATED"
	PostUpdated    EventType = "POST_UPDATED"
	PostDeleted    EventType = "POST_DELETED"
	PostPollVoted  EventType = "POST_POLL_VOTED"
	PostPollClosed EventType = "POST_POLL_CLOSED"
	LikeVoted      EventType = "LIKE_VOTED"
	LikeUnvoted    EventType = "LIKE_UNVOTED"
	CommentCreated EventType = "COMMENT_CREATED"
	CommentUpdated EventType = "COMMENT_UPDATED"
	CommentDeleted EventType = "COMMENT_DELETED"
)

// TopicFor maps an event type to the topic it is published on.
func TopicFor(eventType EventType) Topic {
	switch eventType {
	case LikeVoted, LikeUnvoted:
		return TopicLike
	case CommentCreated, CommentUpdated, CommentDeleted:
		return TopicComment
	default:
		return TopicPost
	}
}
