package repository

import (
	"context"

	"campus_chat_service/internal/chat/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AcademicRepository reads the authoritative academic tables (enrollments,
// classes, sections, professor assignments, users, device tokens). The chat
// side never trusts its own Membership rows alone for collective rooms:
// automation events are asynchronous, so Membership can momentarily lag this
// source of truth.
type AcademicRepository interface {
	EnrolledStudentIDs(ctx context.Context, classID string) ([]string, error)
	ProfessorIDs(ctx context.Context, classID string) ([]string, error)
	HasActiveEnrollmentInClass(ctx context.Context, userID, classID string) (bool, error)
	HasEnrollmentInCourse(ctx context.Context, userID, courseID string) (bool, error)
	IsProfessorOfClass(ctx context.Context, userID, classID string) (bool, error)
	StudentIDsOfSection(ctx context.Context, sectionID string) ([]string, error)
	SectionsByTAInCourse(ctx context.Context, taID, courseID string) ([]string, error)
	SectionTA(ctx context.Context, sectionID string) (taID, courseID string, err error)
	DisplayName(ctx context.Context, userID string) (string, error)
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
	DeviceTokens(ctx context.Context, userID string) ([]string, error)
}

type academicRepository struct {
	db *pgxpool.Pool
}

// NewAcademicRepository create an AcademicRepository
func NewAcademicRepository(db *pgxpool.Pool) AcademicRepository {
	return &academicRepository{db: db}
}

func (r *academicRepository) EnrolledStudentIDs(ctx context.Context, classID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		"SELECT student_id FROM enrollments WHERE class_id = $1 AND is_active", classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r *academicRepository) ProfessorIDs(ctx context.Context, classID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		"SELECT professor_id FROM professor_assignments WHERE class_id = $1 AND is_active", classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r *academicRepository) HasActiveEnrollmentInClass(ctx context.Context, userID, classID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND class_id = $2 AND is_active)",
		userID, classID).Scan(&exists)
	return exists, err
}

func (r *academicRepository) HasEnrollmentInCourse(ctx context.Context, userID, courseID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND is_active)",
		userID, courseID).Scan(&exists)
	return exists, err
}

func (r *academicRepository) IsProfessorOfClass(ctx context.Context, userID, classID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM professor_assignments WHERE professor_id = $1 AND class_id = $2 AND is_active)",
		userID, classID).Scan(&exists)
	return exists, err
}

func (r *academicRepository) StudentIDsOfSection(ctx context.Context, sectionID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		"SELECT student_id FROM enrollments WHERE section_id = $1 AND is_active", sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r *academicRepository) SectionsByTAInCourse(ctx context.Context, taID, courseID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		"SELECT id FROM sections WHERE ta_id = $1 AND course_id = $2 AND is_active", taID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func (r *academicRepository) SectionTA(ctx context.Context, sectionID string) (string, string, error) {
	var taID, courseID string
	err := r.db.QueryRow(ctx,
		"SELECT ta_id, course_id FROM sections WHERE id = $1", sectionID).Scan(&taID, &courseID)
	if err == pgx.ErrNoRows {
		return "", "", domain.NotFoundError("section")
	}
	return taID, courseID, err
}

func (r *academicRepository) DisplayName(ctx context.Context, userID string) (string, error) {
	var name string
	err := r.db.QueryRow(ctx,
		"SELECT display_name FROM users WHERE id = $1", userID).Scan(&name)
	if err == pgx.ErrNoRows {
		return "", domain.NotFoundError("user")
	}
	return name, err
}

func (r *academicRepository) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	rows, err := r.db.Query(ctx,
		"SELECT id, display_name FROM users WHERE id = ANY($1)", userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func (r *academicRepository) DeviceTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		"SELECT token FROM device_tokens WHERE user_id = $1", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
