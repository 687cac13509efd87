package main

import (
	"github.com/go-drift/drift/pkg/core"
	"github.com/go-drift/drift/pkg/engine"
	"github.com/go-drift/drift/pkg/graphics"
	"github.com/go-drift/drift/pkg/navigation"
	"github.com/go-drift/drift/pkg/platform"
	"github.com/go-drift/drift/pkg/theme"
)

// Route names.
const (
	routeGate  = "/"
	routeIndex = "/index"
)

// App returns the root widget.
func App() core.Widget {
	return BestFoodApp{}
}

// BestFoodApp sets up the theme and the navigator. The permission gate is
// the initial route; it replaces itself with the index page once the
// required permissions are granted.
type BestFoodApp struct{}

func (a BestFoodApp) CreateElement() core.Element {
	return core.NewStatefulElement(a, nil)
}

func (a BestFoodApp) Key() any {
	return nil
}

func (a BestFoodApp) CreateState() core.State {
	return &appState{}
}

type appState struct {
	core.StateBase
	themeData *theme.AppThemeData
}

func (s *appState) InitState() {
	s.themeData = theme.NewAppThemeData(theme.TargetPlatformMaterial, theme.BrightnessLight)
	engine.SetBackgroundColor(graphics.Color(s.themeData.Material.ColorScheme.Background))

	surface := s.themeData.Material.ColorScheme.Surface
	_ = platform.SetSystemUI(platform.SystemUIStyle{
		StatusBarStyle:  platform.StatusBarStyleDark,
		BackgroundColor: &surface,
		Transparent:     true,
	})
}

func (s *appState) Build(ctx core.BuildContext) core.Widget {
	navigator := navigation.Navigator{
		InitialRoute:    routeGate,
		OnGenerateRoute: generateRoute,
	}

	return theme.AppTheme{
		Data:        s.themeData,
		ChildWidget: navigator,
	}
}

func generateRoute(settings navigation.RouteSettings) navigation.Route {
	switch settings.Name {
	case routeGate:
		return navigation.NewMaterialPageRoute(
			func(ctx core.BuildContext) core.Widget {
				return permissionPage{}
			},
			settings,
		)
	case routeIndex:
		return navigation.NewMaterialPageRoute(
			func(ctx core.BuildContext) core.Widget {
				return indexPage{}
			},
			settings,
		)
	}
	return nil
}
