package python

import (
	"context"
	"path"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/blimu-dev/svc-gen/internal/logger"
	"github.com/blimu-dev/svc-gen/pkg/ir"
	"github.com/blimu-dev/svc-gen/pkg/pipeline"
	"github.com/blimu-dev/svc-gen/pkg/render"
	"github.com/blimu-dev/svc-gen/pkg/sink"
	"github.com/blimu-dev/svc-gen/pkg/utils"
)

// Default gateway port range, half-open
const (
	DefaultGatewayPortMin = 8000
	DefaultGatewayPortMax = 9000
)

const (
	gatewayConfigFile = "nginx.conf"
	StageGateway      = "gateway"
)

// GatewayOptions control where and how gateway configurations are written
type GatewayOptions struct {
	// ConfigPath, when set, is the filesystem path of the configuration file.
	// It replaces the default <outDir>/<gateway>/nginx.conf.
	ConfigPath string
	// Port is used for gateways that declare none.
	Port int
	// PortMin and PortMax bound derived ports.
	PortMin int
	PortMax int
}

// GatewayPort returns the port a gateway listens on: its own, else the
// configured one, else a port derived from its name within [PortMin, PortMax).
// The derived port only depends on the name, so regeneration is stable.
func (o GatewayOptions) GatewayPort(gw *ir.APIGateway) int {
	if gw.Port != 0 {
		return gw.Port
	}
	if o.Port != 0 {
		return o.Port
	}
	lo, hi := o.PortMin, o.PortMax
	if lo <= 0 {
		lo = DefaultGatewayPortMin
	}
	if hi <= lo {
		hi = lo + (DefaultGatewayPortMax - DefaultGatewayPortMin)
	}
	return lo + int(xxhash.Sum64String(gw.Name)%uint64(hi-lo))
}

type upstream struct {
	Name string
	Host string
	Port int
}

type gatewayRoute struct {
	Path     string
	Upstream string
}

// gatewayContext builds the nginx render context. Routes keep their
// declared order; upstreams are unique and sorted.
func gatewayContext(gw *ir.APIGateway, port int) render.Context {
	seen := map[string]bool{}
	var ups []upstream
	routes := make([]gatewayRoute, 0, len(gw.Routes))
	for _, r := range gw.Routes {
		name := utils.ToKebabCase(r.Service)
		if r.Port != 0 {
			name = name + "-" + strconv.Itoa(r.Port)
		}
		if !seen[name] {
			seen[name] = true
			ups = append(ups, upstream{Name: name, Host: r.Service, Port: routePort(r)})
		}
		p := r.Path
		if p == "" {
			p = "/" + utils.ToKebabCase(r.Service) + "/"
		}
		routes = append(routes, gatewayRoute{Path: p, Upstream: name})
	}
	sort.Slice(ups, func(i, j int) bool { return ups[i].Name < ups[j].Name })

	return render.Context{
		"gateway_name": gw.Name,
		"port":         port,
		"upstreams":    ups,
		"routes":       routes,
	}
}

func routePort(r ir.Route) int {
	if r.Port != 0 {
		return r.Port
	}
	return defaultServicePort
}

// generateGateway renders the gateway's reverse proxy configuration.
func (g *PythonGenerator) generateGateway(ctx context.Context, gw *ir.APIGateway, target pipeline.Target) (pipeline.Report, error) {
	log := g.logger().With(logger.FieldService, gw.Name)
	out := target
	file := path.Join(gw.Name, gatewayConfigFile)
	if cp := g.opts.Gateway.ConfigPath; cp != "" {
		out = pipeline.Target{Sink: sink.NewFilesystemSink(filepath.Dir(cp)), Dir: filepath.Dir(cp)}
		file = filepath.Base(cp)
	}

	stage := pipeline.Stage{Name: StageGateway, Run: func(ctx context.Context) (int, error) {
		renderer, err := g.renderer()
		if err != nil {
			return 0, err
		}
		port := g.opts.Gateway.GatewayPort(gw)
		if gw.Port == 0 {
			log.Infow("Derived gateway port", "port", port)
		}
		text, err := renderer.Render("nginx", gatewayContext(gw, port))
		if err != nil {
			return 0, err
		}
		if dir := path.Dir(file); dir != "." {
			if err := out.Sink.EnsureDir(ctx, dir); err != nil {
				return 0, err
			}
		}
		if err := out.Sink.WriteFile(ctx, file, []byte(text), 0); err != nil {
			return 0, err
		}
		return 1, nil
	}}
	return pipeline.New(gw.Name, log, stage).Run(ctx)
}
