package gateway

import (
	"go.uber.org/zap"

	"gateway/internal/models"
	"gateway/internal/repository"
)

// Route is a broker destination for one event category.
type Route struct {
	Exchange   string
	RoutingKey string
}

// Routes maps each event category to its broker destination.
type Routes struct {
	Base       Route
	MemberJoin Route
	Command    Route
}

// DefaultRoutes returns the built-in destinations used when no module
// registered an override.
func DefaultRoutes() Routes {
	return Routes{
		Base:       Route{Exchange: "checks", RoutingKey: "base"},
		MemberJoin: Route{Exchange: "telegram", RoutingKey: "join"},
		Command:    Route{Exchange: "telegram", RoutingKey: "cmd"},
	}
}

// LoadRoutes overlays the persisted module routing table onto the defaults.
// Rows come back ordered by priority; the first row per category wins.
func LoadRoutes(repo repository.ModuleRepository, logger *zap.Logger) Routes {
	routes := DefaultRoutes()
	rows, err := repo.GetRoutes()
	if err != nil {
		logger.Warn("Failed to load module routes, using defaults", zap.Error(err))
		return routes
	}
	seen := make(map[models.QueueCategory]bool, 3)
	for _, row := range rows {
		if seen[row.Category] {
			continue
		}
		seen[row.Category] = true
		route := Route{Exchange: row.Exchange, RoutingKey: row.RoutingKey}
		switch row.Category {
		case models.CategoryBase:
			routes.Base = route
		case models.CategoryMemberJoin:
			routes.MemberJoin = route
		case models.CategoryCommand:
			routes.Command = route
		default:
			logger.Warn("Unknown route category", zap.String("category", string(row.Category)),
				zap.String("module_id", row.ModuleID))
		}
	}
	return routes
}
