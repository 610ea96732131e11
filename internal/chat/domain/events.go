package domain

// Academic lifecycle events consumed by the automation engine.
const (
	EventClassCreated      = "class.created"
	EventClassUpdated      = "class.updated"
	EventClassDeleted      = "class.deleted"
	EventSectionCreated    = "section.created"
	EventSectionUpdated    = "section.updated"
	EventSectionDeleted    = "section.deleted"
	EventProfessorAssigned = "professor.assigned"
	EventProfessorRemoved  = "professor.removed"
	EventEnrollmentCreated = "enrollment.created"
	EventEnrollmentRemoved = "enrollment.removed"
)

// Derived events re-emitted by the automation engine for topic bookkeeping.
const (
	EventRoomCreated         = "room.created"
	EventRoomDeleted         = "room.deleted"
	EventUserJoinedGroup     = "user.joined.group"
	EventUserLeftGroup       = "user.left.group"
	EventUserEnrolledClass   = "user.enrolled.class"
	EventUserUnenrolledClass = "user.unenrolled.class"
)

// ClassCreatedEvent payload of class.created
type ClassCreatedEvent struct {
	ClassID    string `json:"class_id"`
	CourseID   string `json:"course_id"`
	CourseCode string `json:"course_code"`
	CourseName string `json:"course_name"`
	DeptCode   string `json:"dept_code"`
	TargetYear int    `json:"target_year"`
}

// ClassUpdatedEvent payload of class.updated
type ClassUpdatedEvent struct {
	ClassID    string `json:"class_id"`
	CourseCode string `json:"course_code"`
	CourseName string `json:"course_name"`
}

// ClassDeletedEvent payload of class.deleted
type ClassDeletedEvent struct {
	ClassID string `json:"class_id"`
}

// SectionCreatedEvent payload of section.created
type SectionCreatedEvent struct {
	SectionID string `json:"section_id"`
	CourseID  string `json:"course_id"`
	TAID      string `json:"ta_id"`
}

// SectionUpdatedEvent payload of section.updated; OldTAID differs from
// NewTAID on a TA reassignment.
type SectionUpdatedEvent struct {
	SectionID string `json:"section_id"`
	CourseID  string `json:"course_id"`
	OldTAID   string `json:"old_ta_id"`
	NewTAID   string `json:"new_ta_id"`
}

// SectionDeletedEvent payload of section.deleted
type SectionDeletedEvent struct {
	SectionID string `json:"section_id"`
	CourseID  string `json:"course_id"`
	TAID      string `json:"ta_id"`
}

// ProfessorAssignedEvent payload of professor.assigned
type ProfessorAssignedEvent struct {
	ClassID     string `json:"class_id"`
	ProfessorID string `json:"professor_id"`
}

// ProfessorRemovedEvent payload of professor.removed
type ProfessorRemovedEvent struct {
	ClassID     string `json:"class_id"`
	ProfessorID string `json:"professor_id"`
}

// EnrollmentCreatedEvent payload of enrollment.created
type EnrollmentCreatedEvent struct {
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	CourseID  string `json:"course_id"`
	SectionID string `json:"section_id,omitempty"`
}

// EnrollmentRemovedEvent payload of enrollment.removed
type EnrollmentRemovedEvent struct {
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	CourseID  string `json:"course_id"`
	SectionID string `json:"section_id,omitempty"`
}

// RoomCreatedEvent payload of room.created
type RoomCreatedEvent struct {
	RoomID    string   `json:"room_id"`
	Type      RoomType `json:"type"`
	MemberIDs []string `json:"member_ids"`
	CreatedBy string   `json:"created_by"`
	ClassID   string   `json:"class_id,omitempty"`
}

// RoomDeletedEvent payload of room.deleted
type RoomDeletedEvent struct {
	RoomID    string   `json:"room_id"`
	Type      RoomType `json:"type"`
	MemberIDs []string `json:"member_ids"`
	ClassID   string   `json:"class_id,omitempty"`
}

// MembershipChangedEvent payload of user.joined.group / user.left.group
type MembershipChangedEvent struct {
	RoomID string   `json:"room_id"`
	Type   RoomType `json:"type"`
	UserID string   `json:"user_id"`
}

// ClassTopicEvent payload of user.enrolled.class / user.unenrolled.class;
// class-wide topic bookkeeping independent of room membership.
type ClassTopicEvent struct {
	ClassID string `json:"class_id"`
	UserID  string `json:"user_id"`
}
