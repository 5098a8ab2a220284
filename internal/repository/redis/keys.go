package redisrepo

import "fmt"

const ns = "tablego:v1"

func KeyTablesList() string {
	return ns + ":tables:list"
}

func KeyTable(tableID int64) string {
	return fmt.Sprintf("%s:tables:%d", ns, tableID)
}

func KeyIdemReservation(idemKey string) string {
	return fmt.Sprintf("%s:idem:reservations:%s", ns, idemKey)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelChanges() string {
	return ns + ":changes"
}
