package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AppMigrations returns the full migration set for the application schema.
// Shared by cmd/server (applies them at startup) and cmd/imobctl verify-schema.
func AppMigrations() []Migration {
	return []Migration{
		{
			Name: "001_users_and_sessions.sql",
			SQL: `
CREATE TABLE IF NOT EXISTS users (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  nome TEXT NOT NULL,
  telefone TEXT,
  role TEXT NOT NULL DEFAULT 'corretor' CHECK (role IN ('admin', 'corretor')),
  ativo BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS sessions (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  refresh_token_hash TEXT NOT NULL,
  family_id UUID NOT NULL,
  user_agent TEXT,
  ip_address TEXT,
  expires_at TIMESTAMPTZ NOT NULL,
  revoked_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_family ON sessions(family_id);

CREATE TABLE IF NOT EXISTS login_lockouts (
  email TEXT PRIMARY KEY,
  failed_count INTEGER NOT NULL DEFAULT 0,
  locked_at TIMESTAMPTZ,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`,
		},
		{
			Name: "002_cidades_and_imoveis.sql",
			SQL: `
CREATE TABLE IF NOT EXISTS cidades (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  nome TEXT NOT NULL,
  uf CHAR(2) NOT NULL,
  ativa BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE(nome, uf)
);

CREATE TABLE IF NOT EXISTS imoveis (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  nome TEXT NOT NULL,
  descricao TEXT,
  tipo TEXT NOT NULL CHECK (tipo IN ('casa', 'apartamento', 'terreno', 'chacara', 'sitio', 'fazenda', 'comercial')),
  finalidade TEXT NOT NULL CHECK (finalidade IN ('venda', 'aluguel', 'ambos')),
  valor_venda NUMERIC(14,2),
  valor_aluguel NUMERIC(14,2),
  quartos INTEGER NOT NULL DEFAULT 0,
  banheiros INTEGER NOT NULL DEFAULT 0,
  vagas_garagem INTEGER NOT NULL DEFAULT 0,
  area_total NUMERIC(12,2),
  area_construida NUMERIC(12,2),
  endereco TEXT,
  bairro TEXT,
  cidade_id UUID REFERENCES cidades(id),
  caracteristicas JSONB NOT NULL DEFAULT '[]'::jsonb,
  destaque BOOLEAN NOT NULL DEFAULT FALSE,
  ativo BOOLEAN NOT NULL DEFAULT TRUE,
  user_id UUID REFERENCES users(id) ON DELETE SET NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_imoveis_cidade ON imoveis(cidade_id);
CREATE INDEX IF NOT EXISTS idx_imoveis_tipo ON imoveis(tipo);
CREATE INDEX IF NOT EXISTS idx_imoveis_finalidade ON imoveis(finalidade);
CREATE INDEX IF NOT EXISTS idx_imoveis_ativo ON imoveis(ativo);
CREATE INDEX IF NOT EXISTS idx_imoveis_destaque ON imoveis(destaque);

CREATE TABLE IF NOT EXISTS imovel_imagens (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  imovel_id UUID NOT NULL REFERENCES imoveis(id) ON DELETE CASCADE,
  s3_key TEXT NOT NULL,
  url TEXT NOT NULL,
  content_type TEXT,
  size_bytes BIGINT,
  ordem INTEGER NOT NULL DEFAULT 0,
  principal BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_imovel_imagens_imovel ON imovel_imagens(imovel_id);
`,
		},
		{
			Name: "003_clientes.sql",
			SQL: `
CREATE TABLE IF NOT EXISTS clientes (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  nome TEXT NOT NULL,
  email TEXT,
  telefone TEXT,
  cpf TEXT,
  endereco TEXT,
  observacoes TEXT,
  imovel_interesse_id UUID REFERENCES imoveis(id) ON DELETE SET NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_clientes_nome ON clientes(nome);
CREATE INDEX IF NOT EXISTS idx_clientes_cpf ON clientes(cpf);
`,
		},
		{
			Name: "004_notificacoes.sql",
			SQL: `
CREATE TABLE IF NOT EXISTS notificacoes (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  titulo TEXT NOT NULL,
  mensagem TEXT NOT NULL,
  tipo TEXT NOT NULL DEFAULT 'info' CHECK (tipo IN ('info', 'alerta', 'sistema', 'cliente', 'imovel')),
  lida BOOLEAN NOT NULL DEFAULT FALSE,
  scheduled_for TIMESTAMPTZ,
  delivered_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_notificacoes_user ON notificacoes(user_id);
CREATE INDEX IF NOT EXISTS idx_notificacoes_lida ON notificacoes(user_id, lida);
CREATE INDEX IF NOT EXISTS idx_notificacoes_scheduled ON notificacoes(scheduled_for) WHERE delivered_at IS NULL;
`,
		},
		{
			Name: "005_audit_and_settings.sql",
			SQL: `
CREATE TABLE IF NOT EXISTS audit_log (
  id BIGSERIAL PRIMARY KEY,
  user_id UUID REFERENCES users(id) ON DELETE SET NULL,
  action TEXT NOT NULL,
  resource_type TEXT,
  resource_id TEXT,
  ip_address TEXT,
  user_agent TEXT,
  metadata JSONB DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_audit_log_user ON audit_log(user_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);

CREATE TABLE IF NOT EXISTS storage_settings (
  id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  s3_endpoint TEXT NOT NULL,
  s3_region TEXT NOT NULL DEFAULT 'us-east-1',
  s3_bucket TEXT NOT NULL,
  s3_access_key_encrypted TEXT NOT NULL,
  s3_secret_key_encrypted TEXT NOT NULL,
  s3_path_prefix TEXT NOT NULL DEFAULT '',
  public_base_url TEXT NOT NULL DEFAULT '',
  enabled BOOLEAN NOT NULL DEFAULT TRUE,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`,
		},
	}
}

// expectedTables maps table names to columns that must exist. Used by
// imobctl verify-schema to diagnose drift without touching data.
var expectedTables = map[string][]string{
	"users":            {"id", "email", "password_hash", "nome", "role", "ativo"},
	"sessions":         {"id", "user_id", "refresh_token_hash", "family_id", "expires_at", "revoked_at"},
	"login_lockouts":   {"email", "failed_count", "locked_at"},
	"cidades":          {"id", "nome", "uf", "ativa"},
	"imoveis":          {"id", "nome", "tipo", "finalidade", "cidade_id", "destaque", "ativo"},
	"imovel_imagens":   {"id", "imovel_id", "s3_key", "url", "ordem", "principal"},
	"clientes":         {"id", "nome", "email", "telefone", "cpf"},
	"notificacoes":     {"id", "user_id", "titulo", "mensagem", "tipo", "lida", "scheduled_for", "delivered_at"},
	"audit_log":        {"id", "user_id", "action", "ip_address", "created_at"},
	"storage_settings": {"id", "s3_endpoint", "s3_bucket", "s3_access_key_encrypted", "s3_secret_key_encrypted"},
}

// VerifySchema checks that every expected table and column is present.
// Returns a list of human-readable problems, empty when the schema is healthy.
func VerifySchema(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	var problems []string

	for table, cols := range expectedTables {
		var exists bool
		err := pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check table %s: %w", table, err)
		}
		if !exists {
			problems = append(problems, fmt.Sprintf("missing table: %s", table))
			continue
		}

		rows, err := pool.Query(ctx, `
			SELECT column_name FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = $1
		`, table)
		if err != nil {
			return nil, fmt.Errorf("list columns of %s: %w", table, err)
		}
		present := make(map[string]bool)
		for rows.Next() {
			var c string
			if err := rows.Scan(&c); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan column of %s: %w", table, err)
			}
			present[c] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate columns of %s: %w", table, err)
		}

		for _, c := range cols {
			if !present[c] {
				problems = append(problems, fmt.Sprintf("table %s: missing column %s", table, c))
			}
		}
	}

	return problems, nil
}
