// Package users is the account directory behind login and refresh.
//
// [GormDirectory] persists accounts through gorm on SQLite or PostgreSQL;
// [MemoryDirectory] serves tests and throwaway deployments. Both satisfy
// econtact.UserProvider and report unknown accounts as
// econtact.ErrUserNotFound. Usernames are matched case-insensitively.
package users
