package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

// maxVersionRetries bounds how often a command reloads after a
// compare-and-swap conflict before giving up.
const maxVersionRetries = 3

// Actor identifies who issues a command.
type Actor struct {
	ID   string
	Role models.UserRole
}

// SystemActor issues host-driven commands such as deadline expiry.
var SystemActor = Actor{ID: "system", Role: models.RoleAdmin}

// IsAdmin reports whether the actor has unrestricted read access.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// EffectPublisher hands committed effects to their sinks.
type EffectPublisher interface {
	Publish(ctx context.Context, effects []models.Effect)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type approvalChecker interface {
	IsApproved(ctx context.Context, classID, studentID string) (bool, error)
}

// withVersionRetry runs fn until it stops reporting a version conflict or the
// retry budget is spent. fn must reload state on every call.
func withVersionRetry(metrics *MetricsService, entity string, fn func() error) error {
	var err error
	for i := 0; i <= maxVersionRetries; i++ {
		err = fn()
		if !errors.Is(err, appErrors.ErrVersionConflict) {
			return err
		}
		metrics.RecordVersionConflict(entity)
	}
	return err
}

// lookupError maps a repository read failure.
func lookupError(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Internal(err, internalMsg)
}

// saveError passes version conflicts through untouched so withVersionRetry
// can see them and wraps everything else.
func saveError(err error, internalMsg string) error {
	if err == nil || errors.Is(err, appErrors.ErrVersionConflict) {
		return err
	}
	return appErrors.Internal(err, internalMsg)
}

// accessGuard answers the cross-workflow questions every command asks:
// who teaches the class and whether a student is admitted to it.
type accessGuard struct {
	classes     classReader
	enrollments approvalChecker
}

func (g accessGuard) class(ctx context.Context, classID string) (*models.Class, error) {
	class, err := g.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, lookupError(err, "class not found", "failed to load class")
	}
	return class, nil
}

// requireApprovedStudent fails with NotAuthorized unless the actor holds an
// APPROVED enrollment in the class.
func (g accessGuard) requireApprovedStudent(ctx context.Context, actor Actor, classID string) error {
	if actor.ID == "" || actor.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrNotAuthorized, "only enrolled students can do this")
	}
	ok, err := g.enrollments.IsApproved(ctx, classID, actor.ID)
	if err != nil {
		return appErrors.Internal(err, "failed to check enrollment")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotAuthorized, "student is not enrolled in this class")
	}
	return nil
}

func requireClassTeacher(actor Actor, class *models.Class) error {
	if actor.ID == "" || class == nil || class.TeacherID != actor.ID {
		return appErrors.Clone(appErrors.ErrNotAuthorized, "only the class teacher can do this")
	}
	return nil
}

// requireReader allows admins, the class teacher and the owning student.
func requireReader(actor Actor, class *models.Class, ownerID string) error {
	switch {
	case actor.IsAdmin():
		return nil
	case class != nil && actor.ID != "" && class.TeacherID == actor.ID:
		return nil
	case ownerID != "" && actor.ID == ownerID:
		return nil
	}
	return appErrors.Clone(appErrors.ErrNotAuthorized, "not allowed to view this resource")
}

// requireStaff allows admins and the class teacher.
func requireStaff(actor Actor, class *models.Class) error {
	return requireReader(actor, class, "")
}
