package sqlfx

import (
	"github.com/jmoiron/sqlx"

	"github.com/yurykabanov/logrotd/pkg/domain"
	"github.com/yurykabanov/logrotd/pkg/http/handler"
	"github.com/yurykabanov/logrotd/pkg/storage"
)

func RotationsRepository(db *sqlx.DB) (
	*storage.RotationRepository,
	domain.RotationRepository,
	handler.RotationRepository,
) {
	repo := storage.NewRotationRepository(db)

	return repo, repo, repo
}
