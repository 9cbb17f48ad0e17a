// Package migrations 内嵌账本数据库的 SQL 迁移脚本，按文件名顺序执行。
package migrations

import "embed"

// Files 暴露所有 SQL 迁移文件。
//
//go:embed *.sql
var Files embed.FS
