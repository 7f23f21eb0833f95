package recipe

// builtinRecipeSchema is the CUE schema every recipe file must satisfy.
// The embedded disjunction ties each step kind to its argument shape, so
// authoring mistakes surface at parse time, before the sequencer touches
// the environment.
const builtinRecipeSchema = `
#Recipe: {
	name:         string & !=""
	description?: string
	steps: [#Step, ...#Step]
}

#Step: {
	name?: string

	{kind: "user.create", args: #CreateUserArgs} |
	{kind: "fetch", args: #FetchArgs} |
	{kind: "chmod", args: #ChmodArgs} |
	{kind: "pkg.install", args: #InstallSystemPackageArgs} |
	{kind: "langpkg.install", args: #InstallLanguagePackageArgs} |
	{kind: "script.run", args: #RunScriptArgs} |
	{kind: "archive.install", args: #InstallArchiveArgs} |
	{kind: "workdir.set", args: #SetWorkdirArgs} |
	{kind: "env.set", args: #SetEnvArgs} |
	{kind: "port.expose", args: #DeclarePortArgs} |
	{kind: "volume.declare", args: #DeclareVolumeArgs} |
	{kind: "entrypoint.set", args: #SetEntrypointArgs}
}

#CreateUserArgs: {
	username:           string & !=""
	home?:              string
	create_home?:       bool
	tolerate_existing?: bool
}

#FetchArgs: {
	url:  string & !=""
	dest: string & !=""
}

#ChmodArgs: {
	path: string & !=""
	mode: string & =~"^0?[0-7]{3,4}$"
}

#InstallSystemPackageArgs: {
	name:     string & !=""
	manager?: "apt" | "dnf" | "yum" | "zypper"
}

#InstallLanguagePackageArgs: {
	spec:       string & !=""
	installer?: "pip"
	editable?:  bool
}

#RunScriptArgs: {
	interpreter: string & !=""
	path:        string & !=""
	args?: [...string]
}

#InstallArchiveArgs: {
	path:      string & !=""
	installer: "r" | "tar"
	dest?:     string
}

#SetWorkdirArgs: {
	path: string & !=""
}

#SetEnvArgs: {
	key:   string & !=""
	value: string
}

#DeclarePortArgs: {
	port: int & >=1 & <=65535
}

#DeclareVolumeArgs: {
	path: string & !=""
}

#SetEntrypointArgs: {
	command: [string, ...string]
}
`
