// Пакет access — правило видимости отчётов между сайтами.
// Пользователь видит отчёты своего сайта и отчёты тенанта admin.
// Тенант admin привилегирован: видит любой сайт и может удалять отчёты.
package access

import "strings"

// PrivilegedSite — имя привилегированного тенанта.
const PrivilegedSite = "admin"

// Normalize приводит имя сайта к каноническому виду (нижний регистр, без пробелов по краям).
func Normalize(site string) string {
	return strings.ToLower(strings.TrimSpace(site))
}

// VisibleSites возвращает набор сайтов, чьи отчёты видны при запросе
// по сайту site: сам сайт и admin. Значения нормализованы.
func VisibleSites(site string) []string {
	s := Normalize(site)
	if s == PrivilegedSite {
		return []string{PrivilegedSite}
	}
	return []string{s, PrivilegedSite}
}

// IsPrivileged проверяет, относится ли сайт к привилегированному тенанту.
func IsPrivileged(site string) bool {
	return Normalize(site) == PrivilegedSite
}

// CanAccess проверяет, может ли пользователь сайта requester
// обращаться к отчётам сайта target.
func CanAccess(requester, target string) bool {
	if IsPrivileged(requester) {
		return true
	}
	r := Normalize(requester)
	return r != "" && r == Normalize(target)
}

// CanView проверяет, виден ли пользователю сайта requester отчёт сайта owner.
// Совпадает с правилом VisibleSites: свой сайт, отчёты admin, либо requester — admin.
func CanView(requester, owner string) bool {
	return IsPrivileged(owner) || CanAccess(requester, owner)
}
