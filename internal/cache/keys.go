package cache

import "fmt"

const (
	KeyCities = "cities"
	KeyRoutes = "routes"
)

func KeyRouteStops(routeID string) string {
	return fmt.Sprintf("stops:%s", routeID)
}

func KeyConnections(origin, destination string) string {
	return fmt.Sprintf("connections:%s|%s", origin, destination)
}

func KeyPlan(hash string) string {
	return fmt.Sprintf("plan:%s", hash)
}
