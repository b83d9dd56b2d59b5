package item

import "sort"

// Field is an attribute name as it appears in an item's flattened map.
type Field string

// Identity and bookkeeping fields.
const (
	FieldName          Field = "name"
	FieldUID           Field = "uid"
	FieldParent        Field = "parent"
	FieldDepth         Field = "depth"
	FieldComment       Field = "comment"
	FieldCtime         Field = "ctime"
	FieldMtime         Field = "mtime"
	FieldIsSubobject   Field = "is_subobject"
	FieldTemplateFiles Field = "template_files"
	FieldInterfaces    Field = "interfaces"
)

// Inheritable dict fields.
const (
	FieldKernelOptions     Field = "kernel_options"
	FieldKernelOptionsPost Field = "kernel_options_post"
	FieldAutoinstallMeta   Field = "autoinstall_meta"
	FieldFetchableFiles    Field = "fetchable_files"
	FieldBootFiles         Field = "boot_files"
)

// Inheritable scalar fields.
const (
	FieldOwners            Field = "owners"
	FieldBootLoaders       Field = "boot_loaders"
	FieldServer            Field = "server"
	FieldNextServerV4      Field = "next_server_v4"
	FieldNextServerV6      Field = "next_server_v6"
	FieldProxy             Field = "proxy"
	FieldEnableIPXE        Field = "enable_ipxe"
	FieldEnableMenu        Field = "enable_menu"
	FieldNameServers       Field = "name_servers"
	FieldNameServersSearch Field = "name_servers_search"
	FieldAutoinstall       Field = "autoinstall"
	FieldVirtAutoBoot      Field = "virt_auto_boot"
	FieldVirtBridge        Field = "virt_bridge"
	FieldVirtCPUs          Field = "virt_cpus"
	FieldVirtFileSize      Field = "virt_file_size"
	FieldVirtRAM           Field = "virt_ram"
	FieldVirtType          Field = "virt_type"
)

// Reference fields naming an item of another family (or, for parent, the same one).
const (
	FieldDistro  Field = "distro"
	FieldMenu    Field = "menu"
	FieldRepos   Field = "repos"
	FieldProfile Field = "profile"
	FieldImage   Field = "image"
)

// Kind distinguishes the two resolution strategies.
type Kind int

const (
	// KindScalar fields take the first concrete value up the chain.
	KindScalar Kind = iota
	// KindDict fields merge the ancestor mapping with the item's own keys.
	KindDict
)

// ValueType is the concrete shape a scalar field stores.
type ValueType int

// Scalar value shapes.
const (
	TypeString ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeList
)

// Inheritable describes how one inheritable field resolves.
type Inheritable struct {
	Name Field
	Kind Kind
	Type ValueType
	// Setting is the global settings key consulted after the item chain;
	// "default_" + Setting is tried after that.
	Setting string
	// Dedupe drops keys that already resolve to the same value upstream.
	Dedupe bool
	// Multiples collects repeated keys of string input into lists.
	Multiples bool
	// Invalid is the message wrapping conversion failures.
	Invalid string
}

// inheritables is the single table consulted by the resolver, the setters,
// and the invalidator.
var inheritables = map[Field]Inheritable{
	FieldKernelOptions:     {Name: FieldKernelOptions, Kind: KindDict, Setting: "kernel_options", Dedupe: true, Multiples: true, Invalid: "invalid kernel value"},
	FieldKernelOptionsPost: {Name: FieldKernelOptionsPost, Kind: KindDict, Setting: "kernel_options_post", Multiples: true, Invalid: "invalid post kernel options"},
	FieldAutoinstallMeta:   {Name: FieldAutoinstallMeta, Kind: KindDict, Setting: "autoinstall_meta", Dedupe: true, Multiples: true, Invalid: "invalid autoinstall metadata"},
	FieldFetchableFiles:    {Name: FieldFetchableFiles, Kind: KindDict, Setting: "fetchable_files", Invalid: "invalid fetchable files specified"},
	FieldBootFiles:         {Name: FieldBootFiles, Kind: KindDict, Setting: "boot_files", Invalid: "invalid boot files specified"},

	FieldOwners:            {Name: FieldOwners, Type: TypeList, Setting: "default_ownership", Invalid: "invalid owners"},
	FieldBootLoaders:       {Name: FieldBootLoaders, Type: TypeList, Setting: "boot_loaders", Invalid: "invalid boot loaders"},
	FieldServer:            {Name: FieldServer, Type: TypeString, Setting: "server", Invalid: "invalid server"},
	FieldNextServerV4:      {Name: FieldNextServerV4, Type: TypeString, Setting: "next_server_v4", Invalid: "invalid next server (IPv4)"},
	FieldNextServerV6:      {Name: FieldNextServerV6, Type: TypeString, Setting: "next_server_v6", Invalid: "invalid next server (IPv6)"},
	FieldProxy:             {Name: FieldProxy, Type: TypeString, Setting: "proxy_url_int", Invalid: "invalid proxy"},
	FieldEnableIPXE:        {Name: FieldEnableIPXE, Type: TypeBool, Setting: "enable_ipxe", Invalid: "invalid enable_ipxe"},
	FieldEnableMenu:        {Name: FieldEnableMenu, Type: TypeBool, Setting: "enable_menu", Invalid: "invalid enable_menu"},
	FieldNameServers:       {Name: FieldNameServers, Type: TypeList, Setting: "name_servers", Invalid: "invalid name servers"},
	FieldNameServersSearch: {Name: FieldNameServersSearch, Type: TypeList, Setting: "name_servers_search", Invalid: "invalid name servers search"},
	FieldAutoinstall:       {Name: FieldAutoinstall, Type: TypeString, Setting: "autoinstall", Invalid: "invalid autoinstall template"},
	FieldVirtAutoBoot:      {Name: FieldVirtAutoBoot, Type: TypeBool, Setting: "virt_auto_boot", Invalid: "invalid virt_auto_boot"},
	FieldVirtBridge:        {Name: FieldVirtBridge, Type: TypeString, Setting: "virt_bridge", Invalid: "invalid virt bridge"},
	FieldVirtCPUs:          {Name: FieldVirtCPUs, Type: TypeInt, Setting: "virt_cpus", Invalid: "invalid virt cpus"},
	FieldVirtFileSize:      {Name: FieldVirtFileSize, Type: TypeFloat, Setting: "virt_file_size", Invalid: "invalid virt file size"},
	FieldVirtRAM:           {Name: FieldVirtRAM, Type: TypeInt, Setting: "virt_ram", Invalid: "invalid virt ram"},
	FieldVirtType:          {Name: FieldVirtType, Type: TypeString, Setting: "virt_type", Invalid: "invalid virt type"},
}

var dictFields = []Field{
	FieldKernelOptions, FieldKernelOptionsPost, FieldAutoinstallMeta, FieldFetchableFiles, FieldBootFiles,
}

// LookupInheritable returns the table entry for field.
func LookupInheritable(field Field) (Inheritable, bool) {
	def, ok := inheritables[field]
	return def, ok
}

// IsInheritable reports whether field may hold the inherit sentinel.
func IsInheritable(field Field) bool {
	_, ok := inheritables[field]
	return ok
}

// Inheritables returns every table entry sorted by name.
func Inheritables() []Inheritable {
	out := make([]Inheritable, 0, len(inheritables))
	for _, def := range inheritables {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cascades reports whether changing field can alter what descendants
// resolve: inheritable values plus the links that shape the chain.
func cascades(field Field) bool {
	if IsInheritable(field) || field == FieldParent {
		return true
	}
	_, isRef := referenceTarget(field)
	return isRef
}
