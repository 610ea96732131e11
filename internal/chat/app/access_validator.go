package app

import (
	"context"

	academic "campus_chat_service/internal/academic/repository"
	"campus_chat_service/internal/chat/domain"
	"campus_chat_service/internal/chat/repository"
)

// AccessValidator answers "may this user interact with this room at all".
type AccessValidator interface {
	CanAccess(ctx context.Context, userID, roomID string) (bool, error)
}

// AccessControlValidator layers a Membership check with an authoritative
// academic check for collective rooms. Membership alone is not trusted for
// CLASS and SECTION rooms because automation events land asynchronously: a
// student dropped from a class this morning may still hold a stale row.
type AccessControlValidator struct {
	roomRepo   repository.RoomRepository
	memberRepo repository.MembershipRepository
	academic   academic.AcademicRepository
}

// NewAccessControlValidator create an AccessControlValidator
func NewAccessControlValidator(
	roomRepo repository.RoomRepository,
	memberRepo repository.MembershipRepository,
	academicRepo academic.AcademicRepository,
) *AccessControlValidator {
	return &AccessControlValidator{
		roomRepo:   roomRepo,
		memberRepo: memberRepo,
		academic:   academicRepo,
	}
}

// CanAccess check layer one (a live, non-blocked Membership row) and then the
// per-type academic layer. Returns (false, nil) on denial; an error means the
// check itself failed and the caller must not treat it as a verdict.
func (v *AccessControlValidator) CanAccess(ctx context.Context, userID, roomID string) (bool, error) {
	room, err := v.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room == nil {
		return false, domain.NotFoundError("room")
	}

	member, err := v.memberRepo.Find(ctx, roomID, userID)
	if err != nil {
		return false, err
	}
	if member == nil || member.IsBlocked {
		return false, nil
	}

	switch room.Type {
	case domain.RoomTypeClass:
		if room.CourseClassID == nil {
			return false, nil
		}
		enrolled, err := v.academic.HasActiveEnrollmentInClass(ctx, userID, *room.CourseClassID)
		if err != nil {
			return false, err
		}
		if enrolled {
			return true, nil
		}
		professor, err := v.academic.IsProfessorOfClass(ctx, userID, *room.CourseClassID)
		if err != nil {
			return false, err
		}
		return professor, nil

	case domain.RoomTypeSection:
		if room.TAID != nil && *room.TAID == userID {
			return true, nil
		}
		if room.CourseID == nil {
			return false, nil
		}
		return v.academic.HasEnrollmentInCourse(ctx, userID, *room.CourseID)

	default:
		// PRIVATE and GROUP rooms have no academic layer; membership decides.
		return true, nil
	}
}
