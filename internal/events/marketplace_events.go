package events

// Marketplace event types
const (
	EventTaskCreated          = "task.created"
	EventTaskStatusChanged    = "task.status_changed"
	EventTaskDeleted          = "task.deleted"
	EventApplicationSubmitted = "application.submitted"
	EventApplicationWithdrawn = "application.withdrawn"
	EventApplicationApproved  = "application.approved"
	EventApplicationRejected  = "application.rejected"
	EventMessageSent          = "chat.message_sent"
	EventWorkflowPartial      = "workflow.partial_failure"

	// PatternWorkflow matches every workflow event
	PatternWorkflow = "workflow.*"
)

// TaskEvent is emitted on task lifecycle changes
type TaskEvent struct {
	BaseEvent
	TaskID    string `json:"task_id"`
	CompanyID string `json:"company_id"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
}

func NewTaskEvent(eventType, taskID, companyID, oldStatus, newStatus string) *TaskEvent {
	return &TaskEvent{
		BaseEvent: NewBaseEvent(eventType, companyID),
		TaskID:    taskID,
		CompanyID: companyID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
}

// ApplicationEvent is emitted when an application is submitted, withdrawn or reviewed
type ApplicationEvent struct {
	BaseEvent
	ApplicationID string `json:"application_id"`
	TaskID        string `json:"task_id"`
	StudentID     string `json:"student_id"`
	ChatRoomID    string `json:"chat_room_id,omitempty"`
}

// NewApplicationEvent attributes the event to actorID
func NewApplicationEvent(eventType, actorID, applicationID, taskID, studentID string) *ApplicationEvent {
	return &ApplicationEvent{
		BaseEvent:     NewBaseEvent(eventType, actorID),
		ApplicationID: applicationID,
		TaskID:        taskID,
		StudentID:     studentID,
	}
}

// MessageSentEvent is emitted after a chat message is stored
type MessageSentEvent struct {
	BaseEvent
	RoomID      string `json:"room_id"`
	MessageID   string `json:"message_id"`
	RecipientID string `json:"recipient_id"`
}

func NewMessageSentEvent(senderID, roomID, messageID, recipientID string) *MessageSentEvent {
	return &MessageSentEvent{
		BaseEvent:   NewBaseEvent(EventMessageSent, senderID),
		RoomID:      roomID,
		MessageID:   messageID,
		RecipientID: recipientID,
	}
}

// WorkflowPartialFailureEvent reports a multi-step workflow that stopped
// after its first write succeeded. Subscribers repair the named task and
// company counters.
type WorkflowPartialFailureEvent struct {
	BaseEvent
	Workflow  string `json:"workflow"`
	Step      string `json:"step"`
	TaskID    string `json:"task_id,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
	StudentID string `json:"student_id,omitempty"`
	Reason    string `json:"reason"`
}

func NewWorkflowPartialFailureEvent(workflow, step, taskID, companyID, studentID string, cause error) *WorkflowPartialFailureEvent {
	e := &WorkflowPartialFailureEvent{
		BaseEvent: NewBaseEvent(EventWorkflowPartial, studentID),
		Workflow:  workflow,
		Step:      step,
		TaskID:    taskID,
		CompanyID: companyID,
		StudentID: studentID,
	}
	if cause != nil {
		e.Reason = cause.Error()
	}
	e.Metadata = map[string]interface{}{"workflow": workflow, "step": step}
	return e
}
