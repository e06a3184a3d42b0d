package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"careslot/backend/internal/domain"
	"careslot/backend/internal/service/appointments"
	"careslot/backend/internal/store"
)

type fakeAppointmentsService struct {
	bookFn              func(ctx context.Context, in appointments.BookInput) (domain.Appointment, error)
	listFn              func(ctx context.Context, userID string) ([]domain.Appointment, error)
	cancelFn            func(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error)
	completeFn          func(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error)
	listProfessionalsFn func(ctx context.Context) ([]domain.Professional, error)
}

func (f *fakeAppointmentsService) Book(ctx context.Context, in appointments.BookInput) (domain.Appointment, error) {
	if f.bookFn == nil {
		panic("Book not configured")
	}
	return f.bookFn(ctx, in)
}

func (f *fakeAppointmentsService) ListForUser(ctx context.Context, userID string) ([]domain.Appointment, error) {
	if f.listFn == nil {
		panic("ListForUser not configured")
	}
	return f.listFn(ctx, userID)
}

func (f *fakeAppointmentsService) Cancel(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error) {
	if f.cancelFn == nil {
		panic("Cancel not configured")
	}
	return f.cancelFn(ctx, userID, appointmentID)
}

func (f *fakeAppointmentsService) Complete(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error) {
	if f.completeFn == nil {
		panic("Complete not configured")
	}
	return f.completeFn(ctx, userID, appointmentID)
}

func (f *fakeAppointmentsService) ListProfessionals(ctx context.Context) ([]domain.Professional, error) {
	if f.listProfessionalsFn == nil {
		panic("ListProfessionals not configured")
	}
	return f.listProfessionalsFn(ctx)
}

var (
	testProfessionalID = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	testAppointmentID  = uuid.MustParse("00000000-0000-0000-0000-000000000901")
)

func ptr(t time.Time) *time.Time {
	return &t
}

func asUser(userID string) context.Context {
	return context.WithValue(context.Background(), userIDKey, userID)
}

func TestBookAppointment_RejectsMissingTimes(t *testing.T) {
	srv := NewAppointmentsServer(&fakeAppointmentsService{}, slog.Default())

	_, err := srv.BookAppointment(asUser("u1"), &BookAppointmentRequest{
		UserID:         "u1",
		ProfessionalID: testProfessionalID.String(),
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.InvalidArgument)
	}
}

func TestBookAppointment_RejectsMalformedProfessionalID(t *testing.T) {
	srv := NewAppointmentsServer(&fakeAppointmentsService{}, slog.Default())
	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	_, err := srv.BookAppointment(asUser("u1"), &BookAppointmentRequest{
		UserID:         "u1",
		ProfessionalID: "dr-grey",
		StartTime:      ptr(start),
		EndTime:        ptr(start.Add(time.Hour)),
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.InvalidArgument)
	}
}

func TestBookAppointment_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{name: "validation", err: &appointments.ValidationError{Field: "start_time"}, want: codes.InvalidArgument},
		{name: "conflict", err: store.ErrConflict, want: codes.FailedPrecondition},
		{name: "persistence", err: &appointments.PersistenceError{Op: "book", Err: errors.New("db down")}, want: codes.Internal},
	}

	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewAppointmentsServer(&fakeAppointmentsService{
				bookFn: func(ctx context.Context, in appointments.BookInput) (domain.Appointment, error) {
					return domain.Appointment{}, tt.err
				},
			}, slog.Default())

			_, err := srv.BookAppointment(asUser("u1"), &BookAppointmentRequest{
				UserID:         "u1",
				ProfessionalID: testProfessionalID.String(),
				StartTime:      ptr(start),
				EndTime:        ptr(start.Add(time.Hour)),
			})
			if status.Code(err) != tt.want {
				t.Fatalf("code = %v, want %v", status.Code(err), tt.want)
			}
			if tt.want == codes.Internal && status.Convert(err).Message() != "internal error" {
				t.Fatalf("message = %q, want generic", status.Convert(err).Message())
			}
		})
	}
}

func TestCancelAppointment_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{name: "not found", err: store.ErrNotFound, want: codes.NotFound},
		{name: "too late", err: appointments.ErrTooLate, want: codes.FailedPrecondition},
		{name: "terminal", err: appointments.ErrInvalidTransition, want: codes.FailedPrecondition},
		{name: "persistence", err: &appointments.PersistenceError{Op: "cancelled", Err: errors.New("db down")}, want: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewAppointmentsServer(&fakeAppointmentsService{
				cancelFn: func(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error) {
					return domain.Appointment{}, tt.err
				},
			}, slog.Default())

			_, err := srv.CancelAppointment(asUser("u1"), &CancelAppointmentRequest{
				UserID:        "u1",
				AppointmentID: testAppointmentID.String(),
			})
			if status.Code(err) != tt.want {
				t.Fatalf("code = %v, want %v", status.Code(err), tt.want)
			}
		})
	}
}

func TestCancelAppointment_UnparseableIDIsNotFound(t *testing.T) {
	var gotID uuid.UUID
	srv := NewAppointmentsServer(&fakeAppointmentsService{
		cancelFn: func(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error) {
			gotID = appointmentID
			return domain.Appointment{}, store.ErrNotFound
		},
	}, slog.Default())

	_, err := srv.CancelAppointment(asUser("u1"), &CancelAppointmentRequest{UserID: "u1", AppointmentID: "not-a-uuid"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.NotFound)
	}
	if gotID != uuid.Nil {
		t.Fatalf("appointment id = %v, want nil", gotID)
	}
}

func TestCompleteAppointment_InvalidTransition(t *testing.T) {
	srv := NewAppointmentsServer(&fakeAppointmentsService{
		completeFn: func(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error) {
			return domain.Appointment{}, appointments.ErrInvalidTransition
		},
	}, slog.Default())

	_, err := srv.CompleteAppointment(asUser("u1"), &CompleteAppointmentRequest{
		UserID:        "u1",
		AppointmentID: testAppointmentID.String(),
	})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.FailedPrecondition)
	}
}

func TestListAppointments_IncludesProfessional(t *testing.T) {
	start := time.Date(2030, 1, 1, 10, 0, 0, 0, time.FixedZone("x", 3600))
	srv := NewAppointmentsServer(&fakeAppointmentsService{
		listFn: func(ctx context.Context, userID string) ([]domain.Appointment, error) {
			return []domain.Appointment{{
				ID:             testAppointmentID,
				UserID:         userID,
				ProfessionalID: testProfessionalID,
				StartTime:      start,
				EndTime:        start.Add(time.Hour),
				Status:         domain.AppointmentStatusBooked,
				Professional:   &domain.Professional{ID: testProfessionalID, Name: "Dr. Grey"},
			}}, nil
		},
	}, slog.Default())

	resp, err := srv.ListAppointments(asUser("u1"), &ListAppointmentsRequest{UserID: "u1"})
	if err != nil {
		t.Fatalf("ListAppointments error: %v", err)
	}
	if len(resp.Appointments) != 1 {
		t.Fatalf("len = %d, want 1", len(resp.Appointments))
	}
	got := resp.Appointments[0]
	if got.Professional == nil || got.Professional.Name != "Dr. Grey" {
		t.Fatalf("professional = %+v", got.Professional)
	}
	if got.StartTime.Location() != time.UTC {
		t.Fatalf("expected UTC start time, got %v", got.StartTime.Location())
	}
}

func TestCancelAppointment_RejectsForeignUserID(t *testing.T) {
	srv := NewAppointmentsServer(&fakeAppointmentsService{}, slog.Default())

	_, err := srv.CancelAppointment(asUser("mallory"), &CancelAppointmentRequest{
		UserID:        "alice",
		AppointmentID: testAppointmentID.String(),
	})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.PermissionDenied)
	}
}

func TestListAppointments_RequiresAuthenticatedCaller(t *testing.T) {
	srv := NewAppointmentsServer(&fakeAppointmentsService{}, slog.Default())

	_, err := srv.ListAppointments(context.Background(), &ListAppointmentsRequest{UserID: "alice"})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.Unauthenticated)
	}
}

func TestListAppointments_DefaultsToAuthenticatedCaller(t *testing.T) {
	var gotUser string
	srv := NewAppointmentsServer(&fakeAppointmentsService{
		listFn: func(ctx context.Context, userID string) ([]domain.Appointment, error) {
			gotUser = userID
			return nil, nil
		},
	}, slog.Default())

	if _, err := srv.ListAppointments(asUser("alice"), &ListAppointmentsRequest{}); err != nil {
		t.Fatalf("ListAppointments error: %v", err)
	}
	if gotUser != "alice" {
		t.Fatalf("user = %q, want alice", gotUser)
	}
}

const testSecret = "grpc-test-secret"

func signedToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func withBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func TestServiceDesc_RoundTripOverJSONCodec(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	s := grpclib.NewServer(grpclib.ChainUnaryInterceptor(AuthUnaryInterceptor(testSecret)))
	var (
		gotIn     appointments.BookInput
		cancelled []string
	)
	RegisterAppointmentsServiceServer(s, NewAppointmentsServer(&fakeAppointmentsService{
		bookFn: func(ctx context.Context, in appointments.BookInput) (domain.Appointment, error) {
			gotIn = in
			return domain.Appointment{
				ID:             testAppointmentID,
				UserID:         in.UserID,
				ProfessionalID: in.ProfessionalID,
				StartTime:      in.StartTime,
				EndTime:        in.EndTime,
				Status:         domain.AppointmentStatusBooked,
			}, nil
		},
		cancelFn: func(ctx context.Context, userID string, appointmentID uuid.UUID) (domain.Appointment, error) {
			cancelled = append(cancelled, userID)
			return domain.Appointment{}, appointments.ErrTooLate
		},
	}, slog.Default()))
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	conn, err := grpclib.NewClient("passthrough:///bufnet",
		grpclib.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpclib.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewAppointmentsServiceClient(conn)
	start := time.Date(2030, 6, 3, 22, 0, 0, 0, time.UTC)
	book := &BookAppointmentRequest{
		ProfessionalID: testProfessionalID.String(),
		StartTime:      ptr(start),
		EndTime:        ptr(start.Add(time.Hour)),
	}

	if _, err := client.BookAppointment(ctx, book); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("no token: code = %v, want %v", status.Code(err), codes.Unauthenticated)
	}
	if _, err := client.BookAppointment(withBearer(ctx, signedToken(t, "other-secret", "u1")), book); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("wrong key: code = %v, want %v", status.Code(err), codes.Unauthenticated)
	}

	authed := withBearer(ctx, signedToken(t, testSecret, "u1"))
	resp, err := client.BookAppointment(authed, book)
	if err != nil {
		t.Fatalf("BookAppointment error: %v", err)
	}
	if resp.Appointment == nil || resp.Appointment.ID != testAppointmentID.String() {
		t.Fatalf("unexpected response: %+v", resp.Appointment)
	}
	if !gotIn.StartTime.Equal(start) || gotIn.ProfessionalID != testProfessionalID || gotIn.UserID != "u1" {
		t.Fatalf("unexpected input: %+v", gotIn)
	}

	_, err = client.CancelAppointment(authed, &CancelAppointmentRequest{UserID: "victim", AppointmentID: testAppointmentID.String()})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("foreign user_id: code = %v, want %v", status.Code(err), codes.PermissionDenied)
	}
	if len(cancelled) != 0 {
		t.Fatalf("cancel reached the engine for %v", cancelled)
	}

	_, err = client.CancelAppointment(authed, &CancelAppointmentRequest{AppointmentID: testAppointmentID.String()})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.FailedPrecondition)
	}
	if len(cancelled) != 1 || cancelled[0] != "u1" {
		t.Fatalf("cancelled as %v, want [u1]", cancelled)
	}
}
