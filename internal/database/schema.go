package database

import (
	"context"
	"fmt"
	"strings"
)

const (
	tableUsers        = "usuarios"
	tableAuthors      = "autores"
	tableCategories   = "categorias"
	tableBooks        = "livros"
	tableReservations = "reservas"
	tableLoans        = "emprestimos"
	tableReviews      = "avaliacoes"
	tableSessions     = "sessoes"
)

const (
	colID        = "id"
	colBookID    = "livro_id"
	colUserID    = "usuario_id"
	colStatus    = "status"
	colVersion   = "versao"
	colUpdatedAt = "atualizado_em"
	colCreatedAt = "criado_em"
	colAvailable = "exemplares_disponiveis"
	colTotal     = "total_exemplares"
)

// schema uses {{pk}} and {{ts}} placeholders so one list serves both
// SQLite and PostgreSQL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS usuarios (
		id {{pk}},
		nome TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		senha_hash TEXT,
		google_id TEXT UNIQUE,
		papel TEXT NOT NULL DEFAULT 'leitor' CHECK (papel IN ('leitor', 'admin')),
		criado_em {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS autores (
		id {{pk}},
		nome TEXT NOT NULL,
		biografia TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS categorias (
		id {{pk}},
		nome TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS livros (
		id {{pk}},
		titulo TEXT NOT NULL,
		isbn TEXT UNIQUE,
		autor_id BIGINT REFERENCES autores(id),
		categoria_id BIGINT REFERENCES categorias(id),
		ano_publicacao INTEGER,
		preco BIGINT NOT NULL DEFAULT 0,
		total_exemplares BIGINT NOT NULL DEFAULT 0,
		exemplares_disponiveis BIGINT NOT NULL DEFAULT 0,
		descricao TEXT NOT NULL DEFAULT '',
		criado_em {{ts}} NOT NULL,
		CHECK (exemplares_disponiveis >= 0 AND exemplares_disponiveis <= total_exemplares)
	)`,
	`CREATE TABLE IF NOT EXISTS reservas (
		id {{pk}},
		livro_id BIGINT NOT NULL REFERENCES livros(id),
		usuario_id BIGINT NOT NULL REFERENCES usuarios(id),
		status TEXT NOT NULL DEFAULT 'aguardando'
			CHECK (status IN ('aguardando', 'disponivel', 'cancelado', 'concluido', 'expirado')),
		data_reserva {{ts}} NOT NULL,
		data_expiracao {{ts}},
		atualizado_em {{ts}} NOT NULL,
		versao BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_reservas_ativas
		ON reservas(usuario_id, livro_id) WHERE status IN ('aguardando', 'disponivel')`,
	`CREATE INDEX IF NOT EXISTS idx_reservas_fila ON reservas(livro_id, status, data_reserva)`,
	`CREATE INDEX IF NOT EXISTS idx_reservas_usuario ON reservas(usuario_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reservas_expiracao ON reservas(status, data_expiracao)`,
	`CREATE TABLE IF NOT EXISTS emprestimos (
		id {{pk}},
		livro_id BIGINT NOT NULL REFERENCES livros(id),
		usuario_id BIGINT NOT NULL REFERENCES usuarios(id),
		reserva_id BIGINT REFERENCES reservas(id),
		status TEXT NOT NULL DEFAULT 'ativo' CHECK (status IN ('ativo', 'devolvido', 'atrasado')),
		data_emprestimo {{ts}} NOT NULL,
		data_prevista {{ts}} NOT NULL,
		data_devolucao {{ts}}
	)`,
	`CREATE INDEX IF NOT EXISTS idx_emprestimos_usuario ON emprestimos(usuario_id)`,
	`CREATE INDEX IF NOT EXISTS idx_emprestimos_status ON emprestimos(status, data_prevista)`,
	`CREATE TABLE IF NOT EXISTS avaliacoes (
		id {{pk}},
		livro_id BIGINT NOT NULL REFERENCES livros(id),
		usuario_id BIGINT NOT NULL REFERENCES usuarios(id),
		nota INTEGER NOT NULL CHECK (nota BETWEEN 1 AND 5),
		comentario TEXT NOT NULL DEFAULT '',
		criado_em {{ts}} NOT NULL,
		UNIQUE (usuario_id, livro_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_avaliacoes_livro ON avaliacoes(livro_id)`,
	`CREATE TABLE IF NOT EXISTS sessoes (
		id TEXT PRIMARY KEY,
		usuario_id BIGINT NOT NULL REFERENCES usuarios(id),
		criado_em {{ts}} NOT NULL,
		ultimo_acesso {{ts}} NOT NULL,
		encerrada_em {{ts}}
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessoes_usuario ON sessoes(usuario_id)`,
}

// Migrate creates missing tables and indexes. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	replacer := strings.NewReplacer("{{pk}}", "BIGSERIAL PRIMARY KEY", "{{ts}}", "TIMESTAMPTZ")
	if db.isSQLite() {
		replacer = strings.NewReplacer("{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{ts}}", "TIMESTAMP")
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, replacer.Replace(stmt)); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}
