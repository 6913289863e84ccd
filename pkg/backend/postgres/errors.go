package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
)

// Postgres error codes the dashboard cares about
const (
	codeInsufficientPrivilege = "42501"
	codeUndefinedTable        = "42P01"
	codeUndefinedColumn       = "42703"
	codeInvalidForeignKey     = "42830"
	codeQueryCanceled         = "57014"
)

// classify maps a pgx error onto the dashboard error kinds
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.Wrapf(err, apperrors.KindNotFound, "%s: no rows", op)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrapf(err, apperrors.KindTimeout, "%s timed out", op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeInsufficientPrivilege:
			return apperrors.Wrapf(err, apperrors.KindAccessDenied, "%s blocked by policy", op)
		case pgErr.Code == codeUndefinedTable, pgErr.Code == codeUndefinedColumn, pgErr.Code == codeInvalidForeignKey:
			return apperrors.Wrapf(err, apperrors.KindMissingRelationship, "%s: schema mismatch", op)
		case pgErr.Code == codeQueryCanceled:
			return apperrors.Wrapf(err, apperrors.KindTimeout, "%s cancelled by statement timeout", op)
		case len(pgErr.Code) == 5 && (pgErr.Code[:2] == "23" || pgErr.Code[:2] == "22"):
			return apperrors.Wrapf(err, apperrors.KindValidation, "%s rejected: %s", op, pgErr.Message)
		}
	}
	return apperrors.Wrapf(err, apperrors.KindUnknown, "%s failed", op)
}

// classifyWrite is classify for mutations: unclassified failures become KindMutationFailed
func classifyWrite(err error, op string) error {
	if err == nil {
		return nil
	}
	err = classify(err, op)
	if apperrors.KindOf(err) == apperrors.KindUnknown {
		return apperrors.MutationFailed(err, op)
	}
	return err
}
