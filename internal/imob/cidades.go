package imob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// validUFs contains every Brazilian state code.
var validUFs = map[string]bool{
	"AC": true, "AL": true, "AP": true, "AM": true, "BA": true, "CE": true,
	"DF": true, "ES": true, "GO": true, "MA": true, "MT": true, "MS": true,
	"MG": true, "PA": true, "PB": true, "PR": true, "PE": true, "PI": true,
	"RJ": true, "RN": true, "RS": true, "RO": true, "RR": true, "SC": true,
	"SP": true, "SE": true, "TO": true,
}

type CidadeService struct {
	db *pgxpool.Pool
}

func NewCidadeService(db *pgxpool.Pool) *CidadeService {
	return &CidadeService{db: db}
}

type Cidade struct {
	ID        string    `json:"id"`
	Nome      string    `json:"nome"`
	UF        string    `json:"uf"`
	Ativa     bool      `json:"ativa"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CidadeRequest struct {
	Nome  string `json:"nome"`
	UF    string `json:"uf"`
	Ativa *bool  `json:"ativa"`
}

// ValidateCidadeRequest normalizes and validates a cidade payload.
func ValidateCidadeRequest(req *CidadeRequest) error {
	req.Nome = strings.TrimSpace(req.Nome)
	req.UF = strings.ToUpper(strings.TrimSpace(req.UF))
	if req.Nome == "" {
		return fmt.Errorf("nome é obrigatório")
	}
	if !validUFs[req.UF] {
		return fmt.Errorf("UF inválida: %q", req.UF)
	}
	return nil
}

// List returns cities, optionally only active ones, ordered by name.
func (s *CidadeService) List(ctx context.Context, onlyActive bool) ([]Cidade, error) {
	query := `SELECT id, nome, uf, ativa, created_at, updated_at FROM cidades`
	if onlyActive {
		query += ` WHERE ativa`
	}
	query += ` ORDER BY nome, uf`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cidades: %w", err)
	}
	defer rows.Close()

	cidades := []Cidade{}
	for rows.Next() {
		var c Cidade
		if err := rows.Scan(&c.ID, &c.Nome, &c.UF, &c.Ativa, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cidade: %w", err)
		}
		cidades = append(cidades, c)
	}
	return cidades, rows.Err()
}

// Get returns a single city.
func (s *CidadeService) Get(ctx context.Context, id string) (*Cidade, int, error) {
	var c Cidade
	err := s.db.QueryRow(ctx, `
		SELECT id, nome, uf, ativa, created_at, updated_at FROM cidades WHERE id = $1
	`, id).Scan(&c.ID, &c.Nome, &c.UF, &c.Ativa, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, http.StatusNotFound, fmt.Errorf("cidade não encontrada")
		}
		return nil, http.StatusInternalServerError, fmt.Errorf("get cidade: %w", err)
	}
	return &c, http.StatusOK, nil
}

// Create inserts a city. (nome, uf) must be unique.
func (s *CidadeService) Create(ctx context.Context, req CidadeRequest) (*Cidade, int, error) {
	if err := ValidateCidadeRequest(&req); err != nil {
		return nil, http.StatusBadRequest, err
	}

	var c Cidade
	err := s.db.QueryRow(ctx, `
		INSERT INTO cidades (nome, uf) VALUES ($1, $2)
		RETURNING id, nome, uf, ativa, created_at, updated_at
	`, req.Nome, req.UF).Scan(&c.ID, &c.Nome, &c.UF, &c.Ativa, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, http.StatusConflict, fmt.Errorf("cidade já cadastrada")
		}
		return nil, http.StatusInternalServerError, fmt.Errorf("insert cidade: %w", err)
	}
	return &c, http.StatusCreated, nil
}

// Update changes a city's fields.
func (s *CidadeService) Update(ctx context.Context, id string, req CidadeRequest) (*Cidade, int, error) {
	if err := ValidateCidadeRequest(&req); err != nil {
		return nil, http.StatusBadRequest, err
	}

	ativa := true
	if req.Ativa != nil {
		ativa = *req.Ativa
	}

	var c Cidade
	err := s.db.QueryRow(ctx, `
		UPDATE cidades SET nome = $1, uf = $2, ativa = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING id, nome, uf, ativa, created_at, updated_at
	`, req.Nome, req.UF, ativa, id).Scan(&c.ID, &c.Nome, &c.UF, &c.Ativa, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, http.StatusNotFound, fmt.Errorf("cidade não encontrada")
		}
		if isUniqueViolation(err) {
			return nil, http.StatusConflict, fmt.Errorf("cidade já cadastrada")
		}
		return nil, http.StatusInternalServerError, fmt.Errorf("update cidade: %w", err)
	}
	return &c, http.StatusOK, nil
}

// Delete removes a city. Blocked while any imóvel references it.
func (s *CidadeService) Delete(ctx context.Context, id string) (int, error) {
	var inUse bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM imoveis WHERE cidade_id = $1)`, id).Scan(&inUse)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("check imoveis: %w", err)
	}
	if inUse {
		return http.StatusConflict, fmt.Errorf("cidade possui imóveis vinculados")
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM cidades WHERE id = $1`, id)
	if err != nil {
		return http.StatusInternalServerError, fmt.Errorf("delete cidade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return http.StatusNotFound, fmt.Errorf("cidade não encontrada")
	}
	return http.StatusOK, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
