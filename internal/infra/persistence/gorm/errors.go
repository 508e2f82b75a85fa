package gormpersistence

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// mysqlDuplicateEntry 是 MySQL 唯一约束冲突的错误码。
const mysqlDuplicateEntry = 1062

// isDuplicateEntry 判断错误是否为唯一约束冲突。
// 准入去重 (§成员关系) 依赖这个判断与其他数据库错误可区分。
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}
