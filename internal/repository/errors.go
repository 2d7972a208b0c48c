package repository

import "errors"

var (
	// 対象が存在しない or 呼び出しユーザーの所有物でない（区別しない）
	ErrNotFound = errors.New("not found")
	// 一意制約違反
	ErrConflict = errors.New("conflict")
)
