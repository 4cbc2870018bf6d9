package imob

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type AdminService struct {
	db *pgxpool.Pool
}

func NewAdminService(db *pgxpool.Pool) *AdminService {
	return &AdminService{db: db}
}

// AdminUser is the admin-facing view of a user.
type AdminUser struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Nome        string    `json:"nome"`
	Telefone    *string   `json:"telefone"`
	Role        string    `json:"role"`
	Ativo       bool      `json:"ativo"`
	ImovelCount int       `json:"imovel_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// PaginatedUsers holds a page of users plus total count.
type PaginatedUsers struct {
	Users   []AdminUser `json:"users"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
}

// ListUsers returns a paginated list of users with their imóvel counts.
func (s *AdminService) ListUsers(ctx context.Context, page, perPage int) (*PaginatedUsers, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("count users: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.email, u.nome, u.telefone, u.role, u.ativo, u.created_at,
			(SELECT COUNT(*) FROM imoveis WHERE user_id = u.id)
		FROM users u
		ORDER BY u.created_at ASC
		LIMIT $1 OFFSET $2
	`, perPage, offset)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []AdminUser
	for rows.Next() {
		var u AdminUser
		if err := rows.Scan(&u.ID, &u.Email, &u.Nome, &u.Telefone, &u.Role, &u.Ativo, &u.CreatedAt, &u.ImovelCount); err != nil {
			return nil, http.StatusInternalServerError, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if users == nil {
		users = []AdminUser{}
	}
	return &PaginatedUsers{Users: users, Total: total, Page: page, PerPage: perPage}, http.StatusOK, nil
}

// FindAdmins returns all users with the admin role, active or not.
func (s *AdminService) FindAdmins(ctx context.Context) ([]AdminUser, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, email, nome, telefone, role, ativo, created_at
		FROM users WHERE role = 'admin'
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query admins: %w", err)
	}
	defer rows.Close()

	var admins []AdminUser
	for rows.Next() {
		var u AdminUser
		if err := rows.Scan(&u.ID, &u.Email, &u.Nome, &u.Telefone, &u.Role, &u.Ativo, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, u)
	}
	return admins, rows.Err()
}

// PromoteByEmail grants the admin role to an existing user.
func (s *AdminService) PromoteByEmail(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET role = 'admin', updated_at = NOW() WHERE email = $1
	`, email)
	if err != nil {
		return fmt.Errorf("promote user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("usuário não encontrado: %s", email)
	}
	return nil
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Nome     string `json:"nome"`
	Password string `json:"password,omitempty"`
	Role     string `json:"role,omitempty"`
}

// CreateUserResponse includes the generated password when none was supplied.
type CreateUserResponse struct {
	User              AdminUser `json:"user"`
	GeneratedPassword string    `json:"generated_password,omitempty"`
}

// CreateUser creates a user. When no password is given, a random one is
// generated and returned once in the response.
func (s *AdminService) CreateUser(ctx context.Context, req CreateUserRequest) (*CreateUserResponse, int, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	nome := strings.TrimSpace(req.Nome)
	if email == "" || nome == "" {
		return nil, http.StatusBadRequest, fmt.Errorf("email e nome são obrigatórios")
	}
	if !emailRegex.MatchString(email) {
		return nil, http.StatusBadRequest, fmt.Errorf("email inválido")
	}

	role := req.Role
	if role == "" {
		role = "corretor"
	}
	if role != "admin" && role != "corretor" {
		return nil, http.StatusBadRequest, fmt.Errorf("role inválida: %q", role)
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, http.StatusConflict, fmt.Errorf("email já cadastrado")
	}

	password := req.Password
	generated := ""
	if password == "" {
		var err error
		password, err = GenerateRandomPassword(16)
		if err != nil {
			return nil, http.StatusInternalServerError, fmt.Errorf("generate password: %w", err)
		}
		generated = password
	}
	if len(password) < 8 {
		return nil, http.StatusBadRequest, fmt.Errorf("senha deve ter pelo menos 8 caracteres")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("hash password: %w", err)
	}

	var u AdminUser
	err = s.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, nome, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, nome, telefone, role, ativo, created_at
	`, email, string(hash), nome, role).Scan(&u.ID, &u.Email, &u.Nome, &u.Telefone, &u.Role, &u.Ativo, &u.CreatedAt)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("insert user: %w", err)
	}

	return &CreateUserResponse{User: u, GeneratedPassword: generated}, http.StatusCreated, nil
}

type UpdateUserRequest struct {
	Role  *string `json:"role,omitempty"`
	Ativo *bool   `json:"ativo,omitempty"`
}

// UpdateUser changes a user's role and/or active flag. The caller cannot
// demote or deactivate themselves.
func (s *AdminService) UpdateUser(ctx context.Context, callerID, targetID string, req UpdateUserRequest) (int, error) {
	if req.Role == nil && req.Ativo == nil {
		return http.StatusBadRequest, fmt.Errorf("nada para atualizar")
	}
	if req.Role != nil && *req.Role != "admin" && *req.Role != "corretor" {
		return http.StatusBadRequest, fmt.Errorf("role inválida: %q", *req.Role)
	}
	if callerID == targetID {
		if req.Role != nil && *req.Role != "admin" {
			return http.StatusBadRequest, fmt.Errorf("não é possível remover a própria role de admin")
		}
		if req.Ativo != nil && !*req.Ativo {
			return http.StatusBadRequest, fmt.Errorf("não é possível desativar a si mesmo")
		}
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE users SET
			role = COALESCE($1, role),
			ativo = COALESCE($2, ativo),
			updated_at = NOW()
		WHERE id = $3
	`, req.Role, req.Ativo, targetID)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return http.StatusNotFound, fmt.Errorf("usuário não encontrado")
	}

	// A deactivated user should not keep live sessions
	if req.Ativo != nil && !*req.Ativo {
		s.db.Exec(ctx, `UPDATE sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`, targetID)
	}

	return http.StatusOK, nil
}

// DeleteUser deletes a user. Cannot delete yourself or another admin.
func (s *AdminService) DeleteUser(ctx context.Context, callerID, targetID string) (int, error) {
	if callerID == targetID {
		return http.StatusBadRequest, fmt.Errorf("não é possível excluir a si mesmo")
	}

	var role string
	err := s.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, targetID).Scan(&role)
	if err != nil {
		return http.StatusNotFound, fmt.Errorf("usuário não encontrado")
	}
	if role == "admin" {
		return http.StatusForbidden, fmt.Errorf("não é possível excluir outro admin")
	}

	// CASCADE cleans up sessions and notifications; imóveis keep a NULL owner
	_, err = s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, targetID)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("delete user: %w", err)
	}
	return http.StatusOK, nil
}
