package item

import (
	"fmt"
	"sort"

	"github.com/spf13/cast"

	"github.com/papapumpkin/bootforge/internal/convert"
)

// NetworkInterface is one network interface of a system.
type NetworkInterface struct {
	MACAddress         string
	IPAddress          string
	Netmask            string
	IfGateway          string
	DNSName            string
	DHCPTag            string
	MTU                string
	InterfaceType      string
	InterfaceMaster    string
	BondingOpts        string
	BridgeOpts         string
	VirtBridge         string
	ConnectedMode      bool
	Static             bool
	Management         bool
	CNames             []string
	StaticRoutes       []string
	IPv6Address        string
	IPv6Prefix         string
	IPv6DefaultGateway string
	IPv6MTU            string
	IPv6Secondaries    []string
	IPv6StaticRoutes   []string
}

// ToMap flattens the interface using the searchable field names.
func (n *NetworkInterface) ToMap() map[string]any {
	return map[string]any{
		"mac_address":          n.MACAddress,
		"ip_address":           n.IPAddress,
		"netmask":              n.Netmask,
		"if_gateway":           n.IfGateway,
		"dns_name":             n.DNSName,
		"dhcp_tag":             n.DHCPTag,
		"mtu":                  n.MTU,
		"interface_type":       n.InterfaceType,
		"interface_master":     n.InterfaceMaster,
		"bonding_opts":         n.BondingOpts,
		"bridge_opts":          n.BridgeOpts,
		"virt_bridge":          n.VirtBridge,
		"connected_mode":       n.ConnectedMode,
		"static":               n.Static,
		"management":           n.Management,
		"cnames":               append([]string{}, n.CNames...),
		"static_routes":        append([]string{}, n.StaticRoutes...),
		"ipv6_address":         n.IPv6Address,
		"ipv6_prefix":          n.IPv6Prefix,
		"ipv6_default_gateway": n.IPv6DefaultGateway,
		"ipv6_mtu":             n.IPv6MTU,
		"ipv6_secondaries":     append([]string{}, n.IPv6Secondaries...),
		"ipv6_static_routes":   append([]string{}, n.IPv6StaticRoutes...),
	}
}

// ParseInterface builds an interface from its flattened form. Unknown keys
// fail.
func ParseInterface(m map[string]any) (*NetworkInterface, error) {
	n := &NetworkInterface{}
	strs := map[string]*string{
		"mac_address":          &n.MACAddress,
		"ip_address":           &n.IPAddress,
		"netmask":              &n.Netmask,
		"if_gateway":           &n.IfGateway,
		"dns_name":             &n.DNSName,
		"dhcp_tag":             &n.DHCPTag,
		"mtu":                  &n.MTU,
		"interface_type":       &n.InterfaceType,
		"interface_master":     &n.InterfaceMaster,
		"bonding_opts":         &n.BondingOpts,
		"bridge_opts":          &n.BridgeOpts,
		"virt_bridge":          &n.VirtBridge,
		"ipv6_address":         &n.IPv6Address,
		"ipv6_prefix":          &n.IPv6Prefix,
		"ipv6_default_gateway": &n.IPv6DefaultGateway,
		"ipv6_mtu":             &n.IPv6MTU,
	}
	bools := map[string]*bool{
		"connected_mode": &n.ConnectedMode,
		"static":         &n.Static,
		"management":     &n.Management,
	}
	lists := map[string]*[]string{
		"cnames":             &n.CNames,
		"static_routes":      &n.StaticRoutes,
		"ipv6_secondaries":   &n.IPv6Secondaries,
		"ipv6_static_routes": &n.IPv6StaticRoutes,
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		var err error
		switch {
		case strs[k] != nil:
			*strs[k], err = cast.ToStringE(v)
		case bools[k] != nil:
			*bools[k], err = cast.ToBoolE(v)
		case lists[k] != nil:
			*lists[k], err = convert.StringOrListNoInherit(v)
		default:
			return nil, fmt.Errorf("interface: %w: %s", ErrUnknownField, k)
		}
		if err != nil {
			return nil, &ValueError{Field: Field(k), Value: v, Message: "invalid interface field " + k, Err: err}
		}
	}
	return n, nil
}

// Interfaces returns the system's interface names in sorted order.
func (i *Item) Interfaces() []string {
	if err := i.ensureLoaded(); err != nil {
		i.env.log().Warnf("%v", err)
	}
	out := make([]string, 0, len(i.interfaces))
	for n := range i.interfaces {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Interface returns a copy of the named interface.
func (i *Item) Interface(name string) (NetworkInterface, bool) {
	if err := i.ensureLoaded(); err != nil {
		i.env.log().Warnf("%v", err)
	}
	n, ok := i.interfaces[name]
	if !ok {
		return NetworkInterface{}, false
	}
	return *n, true
}

// SetInterface adds or replaces a network interface. Only systems carry them.
func (i *Item) SetInterface(name string, nic NetworkInterface) error {
	if !i.family.hasInterfaces() {
		return fmt.Errorf("%s: %w: %s", i, ErrUnknownField, FieldInterfaces)
	}
	if name == "" {
		return &ValueError{Field: FieldInterfaces, Value: name, Message: "interface name must not be empty", Err: ErrTypeValidation}
	}
	if err := i.ensureLoaded(); err != nil {
		return err
	}
	i.interfaces[name] = &nic
	return i.changed(FieldInterfaces)
}

// RemoveInterface deletes a network interface; missing names are ignored.
func (i *Item) RemoveInterface(name string) error {
	if !i.family.hasInterfaces() {
		return fmt.Errorf("%s: %w: %s", i, ErrUnknownField, FieldInterfaces)
	}
	if err := i.ensureLoaded(); err != nil {
		return err
	}
	delete(i.interfaces, name)
	return i.changed(FieldInterfaces)
}

func (i *Item) setInterfaces(v any) error {
	if !i.family.hasInterfaces() {
		return fmt.Errorf("%s: %w: %s", i, ErrUnknownField, FieldInterfaces)
	}
	raw, err := cast.ToStringMapE(v)
	if err != nil {
		return typeError(FieldInterfaces, v, "map")
	}
	ifaces := make(map[string]*NetworkInterface, len(raw))
	for name, rv := range raw {
		fields, err := cast.ToStringMapE(rv)
		if err != nil {
			return typeError(FieldInterfaces, rv, "map")
		}
		nic, err := ParseInterface(fields)
		if err != nil {
			return fmt.Errorf("%s interface %q: %w", i, name, err)
		}
		ifaces[name] = nic
	}
	i.interfaces = ifaces
	return i.changed(FieldInterfaces)
}
