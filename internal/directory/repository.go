package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound   = errors.New("patient not found")
	ErrProcedureNotFound = errors.New("procedure not found")
)

// Repository resolves patient and procedure references for the scheduling
// and waiting-room components.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)

	GetProcedureByID(ctx context.Context, id uuid.UUID) (*Procedure, error)
	ProcedureExists(ctx context.Context, id uuid.UUID) (bool, error)
}
