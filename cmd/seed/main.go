package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/clinic-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	procedureIDs, err := seedProcedures(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed procedures: %v", err)
	}
	patientIDs, err := seedPatients(context.Background(), pool, 500)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedBookings(context.Background(), pool, patientIDs, procedureIDs, 60); err != nil {
		log.Fatalf("seed bookings: %v", err)
	}

	log.Println("seed complete")
}

func seedProcedures(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	names := []string{
		"Rhinoplasty",
		"Blepharoplasty",
		"Liposuction",
		"Abdominoplasty",
		"Breast Augmentation",
		"Facelift",
		"Otoplasty",
		"Consultation",
		"Follow-up",
		"Laser Treatment",
	}

	log.Printf("seeding %d procedures", len(names))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		id := uuid.New()

		_, err := tx.Exec(ctx, `
			INSERT INTO procedures (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("procedures seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		phone := gofakeit.Phone()
		email := gofakeit.Email()

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, surname, phone, email, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, id, gofakeit.FirstName(), gofakeit.LastName(), phone, email)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("patients seeded")
	return ids, nil
}

// seedBookings places non-overlapping slots across today's schedule so the
// waiting room has something to materialize.
func seedBookings(ctx context.Context, pool *pgxpool.Pool, patients, procedures []uuid.UUID, count int) error {
	log.Printf("seeding %d bookings", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	day := time.Now().Format("2006-01-02")
	slotMinutes := 30

	for i := 0; i < count && i < len(patients); i++ {
		id := uuid.New()
		patient := patients[i]
		procedure := procedures[gofakeit.Number(0, len(procedures)-1)]

		startMinutes := 8*60 + i*slotMinutes // 08:00 onwards, back to back
		start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(startMinutes) * time.Minute)

		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, patient_id, procedure_id, date, start_time, duration_minutes, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5::time, $6, 'scheduled', now(), now())
		`, id, patient, procedure, day, start.Format("15:04:05"), slotMinutes)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("bookings seeded")
	return nil
}
