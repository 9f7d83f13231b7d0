package xconsul

import (
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/pkg/errors"

	"xwire/xlog"
)

type HTTPConfig struct {
	HttpAddr string // consul agent 地址: ip:port
}

// ConsulClient 把本进程的一个 http 端点注册为 consul 服务.
type ConsulClient struct {
	*HTTPConfig
	Addr        string
	Port        int
	ServiceID   string
	ServiceName string
	Tags        []string
	Check       *api.AgentServiceCheck
	Checks      api.AgentServiceChecks
	Client      *api.Client
	Cfg         *api.Config
}

// consul client service check config
func AgentServiceCheckString(check *api.AgentServiceCheck, kv map[string]string) *api.AgentServiceCheck {
	if len(kv) == 0 {
		return nil
	}
	if check == nil {
		check = new(api.AgentServiceCheck)
	}

	for k, v := range kv {
		switch k {
		case "CheckID":
			check.CheckID = v
		case "Name":
			check.Name = v
		case "Interval":
			check.Interval = v
		case "TimeOut":
			check.Timeout = v
		case "TTL":
			check.TTL = v
		case "HTTP":
			check.HTTP = v
		case "TCP":
			check.TCP = v
		case "Status":
			check.Status = v
		case "Notes":
			check.Notes = v
		case "DeregisterCriticalServiceAfter":
			check.DeregisterCriticalServiceAfter = v
		}
	}

	return check
}

func AgentServiceChecksString(checks ...*api.AgentServiceCheck) api.AgentServiceChecks {
	var res api.AgentServiceChecks
	for _, c := range checks {
		if c != nil {
			res = append(res, c)
		}
	}
	return res
}

func (p *ConsulClient) getConfig() *api.Config {
	if p.Cfg != nil {
		return p.Cfg
	}
	res := api.DefaultConfig()
	res.WaitTime = time.Second
	if p.HTTPConfig != nil && p.HttpAddr != "" {
		res.Address = p.HttpAddr
	}
	p.Cfg = res
	return res
}

func (p *ConsulClient) getClient() (*api.Client, error) {
	if p.Client != nil {
		return p.Client, nil
	}
	client, err := api.NewClient(p.getConfig())
	if err != nil {
		return nil, errors.Wrap(err, "consul new client")
	}
	p.Client = client
	return p.Client, nil
}

func (p *ConsulClient) SetServiceID(serviceID string) {
	p.ServiceID = serviceID
}

// Registration 注册内容, 单独拿出来便于检查.
func (p *ConsulClient) Registration() *api.AgentServiceRegistration {
	return &api.AgentServiceRegistration{
		ID:      p.ServiceID,
		Name:    p.ServiceName,
		Tags:    p.Tags,
		Address: p.Addr,
		Port:    p.Port,
		Check:   p.Check,
		Checks:  p.Checks,
	}
}

func (p *ConsulClient) Register() bool {
	client, err := p.getClient()
	if err != nil {
		xlog.Errorf("ConsulClient.Register err=%v", err)
		return false
	}
	if err = client.Agent().ServiceRegister(p.Registration()); err != nil {
		xlog.Errorf("register service %s err=%v", p.ServiceName, err)
		return false
	}
	xlog.InfoF("register service %s to %s ok", p.ServiceName, p.getConfig().Address)
	return true
}

// 取消注册
func (p *ConsulClient) DeRegister() {
	client, err := p.getClient()
	if err == nil {
		err = client.Agent().ServiceDeregister(p.ServiceID)
	}
	if err != nil {
		xlog.Warnf("deregister service %s err=%v", p.ServiceID, err)
	}
}
