package service

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/gradworks/thesis-flow-api/internal/events"
	"github.com/gradworks/thesis-flow-api/internal/models"
	"github.com/gradworks/thesis-flow-api/pkg/storage"
)

// Narrow persistence contracts shared by the workflow services. Tests
// substitute in-memory fakes.

type studentStore interface {
	Get(ctx context.Context, id string) (*models.StudentProfile, error)
	Put(ctx context.Context, student *models.StudentProfile) error
}

type studentScanner interface {
	studentStore
	All(ctx context.Context) ([]models.StudentProfile, error)
}

type staffStore interface {
	Get(ctx context.Context, id string) (*models.StaffProfile, error)
	Put(ctx context.Context, staff *models.StaffProfile) error
}

type thesisStore interface {
	Get(ctx context.Context, id string) (*models.Thesis, error)
	FindByStudent(ctx context.Context, studentID string) (*models.Thesis, error)
	Put(ctx context.Context, thesis *models.Thesis) error
	Delete(ctx context.Context, id string) error
}

type requestStore interface {
	Get(ctx context.Context, id string) (*models.SupervisorRequest, error)
	Put(ctx context.Context, req *models.SupervisorRequest) error
	ListByStudent(ctx context.Context, studentID string) ([]models.SupervisorRequest, error)
}

type oplogStore interface {
	Append(ctx context.Context, entry *models.OperationLog) error
}

type statusCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string)
}

type artifactStore interface {
	Key(thesisID, role string, tier storage.Tier) string
	Save(key string, data []byte) error
	SaveStream(key string, r io.Reader) error
	Copy(srcKey, dstKey string) error
	Open(key string) (*os.File, error)
	Exists(key string) bool
	Delete(key string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}

type mailer interface {
	Send(ctx context.Context, to, subject, body string)
}

func statusCacheKey(thesisID string) string {
	return "thesis:status:" + thesisID
}
