package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/multipanel/internal/scope"
	"github.com/dropDatabas3/multipanel/internal/security/password"
	"github.com/dropDatabas3/multipanel/internal/store"
	"github.com/dropDatabas3/multipanel/internal/validation"
)

// ─── Errors ───

var (
	ErrNotFound     = errors.New("users: not found")
	ErrEmailTaken   = errors.New("users: email already registered")
	ErrPhoneTaken   = errors.New("users: phone already registered")
	ErrInvalidInput = errors.New("users: invalid input")

	// ErrUnreachable distingue "storage del tenant inalcanzable" de
	// "el tenant no tiene usuarios": nunca un cero silencioso.
	ErrUnreachable = errors.New("users: tenant storage unreachable")
)

// Store accede a los usuarios de UN tenant, con su policy aplicada en
// cada query.
type Store struct {
	q      store.Querier
	policy scope.Policy
	hash   password.Params
}

// NewStore construye el store para la conexión resuelta y la policy del tenant.
func NewStore(q store.Querier, p scope.Policy) *Store {
	return &Store{q: q, policy: p, hash: password.Default}
}

// Policy expone la policy (solo lectura).
func (s *Store) Policy() scope.Policy { return s.policy }

const userCols = `id, name, email, phone, password_hash, active, email_verified_at, phone_verified_at, profile_data, last_login_at, created_at, updated_at`

// Create inserta un usuario nuevo. La unicidad efectiva la garantizan los
// constraints compuestos de la tabla; acá solo se valida formato y se
// estampa el discriminador vía la policy.
func (s *Store) Create(ctx context.Context, in CreateInput) (*User, error) {
	if !validation.ValidEmail(in.Email) {
		return nil, fmt.Errorf("%w: email %q", ErrInvalidInput, in.Email)
	}
	if in.Phone != "" && !validation.ValidPhone(in.Phone) {
		return nil, fmt.Errorf("%w: phone %q", ErrInvalidInput, in.Phone)
	}
	if err := password.Validate(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidInput)
	}

	hash, err := password.Hash(s.hash, in.Password)
	if err != nil {
		return nil, err
	}

	profile := in.Profile
	if profile == nil {
		profile = map[string]any{}
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("marshal profile_data: %w", err)
	}

	now := time.Now().UTC()
	record := map[string]any{
		"id":            uuid.New(),
		"name":          in.Name,
		"email":         strings.ToLower(in.Email),
		"password_hash": hash,
		"active":        true,
		"profile_data":  profileJSON,
		"created_at":    now,
		"updated_at":    now,
	}
	if in.Phone != "" {
		record["phone"] = validation.NormalizePhone(in.Phone)
	}
	record = s.policy.StampOnCreate(record)

	q, args := buildInsert(s.policy.Table(), record)
	if _, err := s.q.Exec(ctx, q, args...); err != nil {
		return nil, mapUniqueViolation(err)
	}
	return s.GetByEmail(ctx, in.Email)
}

// buildInsert arma un INSERT con columnas ordenadas (determinístico).
func buildInsert(table string, record map[string]any) (string, []any) {
	cols := make([]string, 0, len(record))
	for c := range record {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	ph := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = record[c]
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(ph, ", ")), args
}

// mapUniqueViolation traduce violaciones de constraint a errores de dominio.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if strings.Contains(pgErr.ConstraintName, "phone") {
			return ErrPhoneTaken
		}
		return ErrEmailTaken
	}
	return err
}

// GetByEmail busca por email dentro del scope del tenant.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getBy(ctx, "LOWER(email) = LOWER($1)", strings.ToLower(email))
}

// GetByPhone busca por teléfono (normalizado) dentro del scope del tenant.
func (s *Store) GetByPhone(ctx context.Context, phone string) (*User, error) {
	return s.getBy(ctx, "phone = $1", validation.NormalizePhone(phone))
}

// GetByID busca por id dentro del scope del tenant.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.getBy(ctx, "id = $1", id)
}

func (s *Store) getBy(ctx context.Context, where string, arg any) (*User, error) {
	q, args := s.selectQuery(where, []any{arg})
	row := s.q.QueryRow(ctx, q, args...)
	u, err := s.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// selectQuery anexa el filtro de la policy al WHERE. El discriminador se
// selecciona también para el check defensivo post-scan.
func (s *Store) selectQuery(where string, args []any) (string, []any) {
	disc := "''"
	if col := s.policy.DiscriminatorColumn(); col != "" {
		disc = col
	}
	if clause, extra := s.policy.Filter(len(args) + 1); clause != "" {
		where = where + " AND " + clause
		args = append(args, extra...)
	}
	return fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s", userCols, disc, s.policy.Table(), where), args
}

// scanUser escanea userCols + discriminador y valida pertenencia al tenant.
func (s *Store) scanUser(row pgx.Row) (*User, error) {
	var (
		u           User
		profileJSON []byte
		disc        string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Active,
		&u.EmailVerifiedAt, &u.PhoneVerifiedAt, &profileJSON, &u.LastLoginAt,
		&u.CreatedAt, &u.UpdatedAt, &disc)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Check(disc); err != nil {
		// Defecto de programación: log fuerte y rechazo, nunca adivinar.
		return nil, err
	}
	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &u.ProfileData); err != nil {
			return nil, fmt.Errorf("unmarshal profile_data: %w", err)
		}
	}
	return &u, nil
}

// List retorna los usuarios del tenant ordenados por creación.
func (s *Store) List(ctx context.Context, limit, offset int) ([]User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	where := "true"
	args := []any{}
	if clause, extra := s.policy.Filter(1); clause != "" {
		where = clause
		args = extra
	}
	disc := "''"
	if col := s.policy.DiscriminatorColumn(); col != "" {
		disc = col
	}
	q := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s ORDER BY created_at LIMIT %d OFFSET %d",
		userCols, disc, s.policy.Table(), where, limit, offset)

	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := s.scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Count retorna la cantidad de usuarios del tenant. Un storage inalcanzable
// es un error observable, no un cero.
func (s *Store) Count(ctx context.Context) (int, error) {
	where := "true"
	args := []any{}
	if clause, extra := s.policy.Filter(1); clause != "" {
		where = clause
		args = extra
	}
	var n int
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", s.policy.Table(), where)
	if err := s.q.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return n, nil
}

// UpdateProfile aplica un patch parcial de perfil.
func (s *Store) UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*User, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	if patch.Name != nil {
		args = append(args, *patch.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.Phone != nil {
		p := validation.NormalizePhone(*patch.Phone)
		if p != "" && !validation.ValidPhone(p) {
			return nil, fmt.Errorf("%w: phone %q", ErrInvalidInput, *patch.Phone)
		}
		if p == "" {
			sets = append(sets, "phone = NULL, phone_verified_at = NULL")
		} else {
			args = append(args, p)
			sets = append(sets, fmt.Sprintf("phone = $%d", len(args)))
		}
	}
	if patch.Profile != nil {
		profileJSON, err := json.Marshal(*patch.Profile)
		if err != nil {
			return nil, fmt.Errorf("marshal profile_data: %w", err)
		}
		args = append(args, profileJSON)
		sets = append(sets, fmt.Sprintf("profile_data = $%d", len(args)))
	}

	if err := s.exec(ctx, "UPDATE %s SET "+strings.Join(sets, ", ")+" WHERE id = $1", args); err != nil {
		return nil, mapUniqueViolation(err)
	}
	return s.GetByID(ctx, id)
}

// SetPassword reemplaza el hash de password.
func (s *Store) SetPassword(ctx context.Context, id uuid.UUID, plain string) error {
	if err := password.Validate(plain); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	hash, err := password.Hash(s.hash, plain)
	if err != nil {
		return err
	}
	return s.exec(ctx, "UPDATE %s SET password_hash = $2, updated_at = now() WHERE id = $1", []any{id, hash})
}

// SetActive habilita/deshabilita la cuenta.
func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.exec(ctx, "UPDATE %s SET active = $2, updated_at = now() WHERE id = $1", []any{id, active})
}

// MarkEmailVerified estampa email_verified_at.
func (s *Store) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, "UPDATE %s SET email_verified_at = now(), updated_at = now() WHERE id = $1", []any{id})
}

// MarkPhoneVerified estampa phone_verified_at.
func (s *Store) MarkPhoneVerified(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, "UPDATE %s SET phone_verified_at = now(), updated_at = now() WHERE id = $1", []any{id})
}

// TouchLogin refresca last_login_at.
func (s *Store) TouchLogin(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, "UPDATE %s SET last_login_at = now() WHERE id = $1", []any{id})
}

// exec ejecuta un UPDATE con el filtro de la policy anexado.
// format debe contener un %s para la tabla y terminar en el WHERE base.
func (s *Store) exec(ctx context.Context, format string, args []any) error {
	q := fmt.Sprintf(format, s.policy.Table())
	if clause, extra := s.policy.Filter(len(args) + 1); clause != "" {
		q += " AND " + clause
		args = append(args, extra...)
	}
	tag, err := s.q.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
