package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"nxrm-staging-utility/cfg"
	"nxrm-staging-utility/nexus"
	"nxrm-staging-utility/staging"
)

type flagGroup int

const (
	projectFlags flagGroup = 1 << iota
	repositoryFlags
	tagFlags
	deployFlags
	moveFlags
	searchFlags
	prepareFlags
)

type command struct {
	flags flagGroup
	// remote commands talk to NXRM and may need a password prompt.
	remote bool
	run    func(ctx context.Context, opts *options, goal staging.Goal) (interface{}, error)
}

var commands = map[string]command{
	"deploy":         {flags: projectFlags | repositoryFlags | tagFlags | deployFlags, remote: true, run: runDeploy},
	"upload":         {flags: projectFlags | repositoryFlags | tagFlags, remote: true, run: runUpload},
	"move":           {flags: repositoryFlags | tagFlags | moveFlags, remote: true, run: runMove},
	"delete":         {flags: tagFlags, remote: true, run: runDelete},
	"prepare-deploy": {flags: projectFlags | prepareFlags, run: runPrepareDeploy},
	"associate":      {flags: tagFlags | searchFlags, remote: true, run: runTag(false)},
	"disassociate":   {flags: tagFlags | searchFlags, remote: true, run: runTag(true)},
	"status":         {remote: true, run: runStatus},
	"repositories":   {remote: true, run: runRepositories},
	"serve":          {remote: true},
}

type options struct {
	configPath       string
	nexusURL         string
	serverID         string
	stagingDirectory string
	executionRoot    string
	offline          bool
	logLevel         string

	pom        string
	groupId    string
	artifactId string
	version    string
	packaging  string
	file       string
	attach     []string

	repository  string
	tag         string
	tagFile     string
	skip        bool
	deferDeploy bool

	sourceRepository      string
	destinationRepository string
	deploySkipProperty    string
	search                map[string]string
}

func (o *options) flagSet(name string, groups flagGroup) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(&o.configPath, "config", "c", "", "config file (JSON or YAML); NXRM_* environment variables override it")
	fs.StringVar(&o.nexusURL, "nexus-url", "", "base url of the NXRM server")
	fs.StringVar(&o.serverID, "server-id", "", "id of the configured server whose credentials are used")
	fs.StringVar(&o.stagingDirectory, "staging-directory", "", "staging directory replacing target/nexus-staging; a local path or smb:// url")
	fs.StringVar(&o.executionRoot, "execution-root", "", "directory holding target/nexus-staging (default: working directory)")
	fs.BoolVar(&o.offline, "offline", false, "fail instead of talking to NXRM")
	fs.StringVar(&o.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	if groups&projectFlags != 0 {
		fs.StringVar(&o.pom, "pom", "", "pom.xml to read coordinates from (default: ./pom.xml when present)")
		fs.StringVar(&o.groupId, "group-id", "", "groupId, overriding the pom")
		fs.StringVar(&o.artifactId, "artifact-id", "", "artifactId, overriding the pom")
		fs.StringVar(&o.version, "version", "", "version, overriding the pom")
		fs.StringVar(&o.packaging, "packaging", "", "packaging, overriding the pom")
		fs.StringVar(&o.file, "file", "", "main artifact file")
		fs.StringArrayVar(&o.attach, "attach", nil, "attached artifact as file[,classifier[,extension]]; repeatable")
	}
	if groups&repositoryFlags != 0 {
		fs.StringVar(&o.repository, "repository", "", "target repository")
	}
	if groups&tagFlags != 0 {
		fs.StringVar(&o.tag, "tag", "", "tag to apply or select")
	}
	if groups&deployFlags != 0 {
		fs.StringVar(&o.tagFile, "tag-file", "", "file whose first line is the tag")
		fs.BoolVar(&o.skip, "skip", false, "skip the deploy")
		fs.BoolVar(&o.deferDeploy, "defer", false, "stage the files locally for a later upload")
	}
	if groups&moveFlags != 0 {
		fs.StringVar(&o.sourceRepository, "source-repository", "", "repository to move from (default: --repository)")
		fs.StringVar(&o.destinationRepository, "destination-repository", "", "repository to move to")
	}
	if groups&searchFlags != 0 {
		fs.StringToStringVar(&o.search, "search", nil, "search criteria, e.g. repository=maven-releases,name=demo")
	}
	if groups&prepareFlags != 0 {
		fs.StringVar(&o.deploySkipProperty, "deploy-skip-property", "", "property recorded for release versions (default: maven.deploy.skip)")
	}
	return fs
}

func (o *options) loadConfig(fs *pflag.FlagSet) (*cfg.StartupConfig, error) {
	config, err := cfg.ReadInitConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if fs.Changed("nexus-url") {
		config.NexusUrl = o.nexusURL
	}
	if fs.Changed("server-id") {
		config.ServerId = o.serverID
	}
	if fs.Changed("staging-directory") {
		config.StagingDirectory = o.stagingDirectory
	}
	if fs.Changed("log-level") {
		config.Logger.Level = o.logLevel
	}
	if err := config.RefineConfig(); err != nil {
		return nil, err
	}
	return config, nil
}

// promptPassword asks for the selected server's password when only the username is configured.
func promptPassword(config *cfg.StartupConfig) error {
	stdin := int(os.Stdin.Fd())
	for i := range config.Servers {
		server := &config.Servers[i]
		if server.Id != config.ServerId || server.Username == "" || server.Password != "" {
			continue
		}
		if !term.IsTerminal(stdin) {
			return nil
		}
		fmt.Fprintf(os.Stderr, "Password for %s on server %s: ", server.Username, server.Id)
		password, err := term.ReadPassword(stdin)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return errors.Wrap(err, "failed to read password")
		}
		server.Password = string(password)
	}
	return nil
}

func (o *options) goal(config *cfg.StartupConfig) staging.Goal {
	bufferSize, _ := config.GetBufferSize()
	goal := staging.Goal{
		ServerID:            config.ServerId,
		NexusURL:            config.NexusUrl,
		AltStagingDirectory: config.StagingDirectory,
		ExecutionRoot:       o.executionRoot,
		Offline:             o.offline,
		BufferSize:          bufferSize,
		IndexFilename:       config.IndexFilename,
	}
	for _, server := range config.Servers {
		goal.Servers = append(goal.Servers, staging.Server{ID: server.Id, Username: server.Username, Password: server.Password})
	}
	if config.ClientCertFile != "" || config.CACertFile != "" {
		goal.Certificate = &nexus.CertificateAuthentication{
			CertFile:   config.ClientCertFile,
			KeyFile:    config.ClientKeyFile,
			CACertFile: config.CACertFile,
		}
	}

	factory := staging.DefaultClientFactory{
		UserAgent:          config.UserAgent,
		RetryMax:           config.RetryMax,
		InsecureSkipVerify: config.InsecureSkipVerify,
	}
	if config.Proxy.Host != "" {
		var auth *nexus.Authentication
		if config.Proxy.Username != "" {
			auth = &nexus.Authentication{Username: config.Proxy.Username, Password: config.Proxy.Password}
		}
		proxy, err := nexus.NewProxyConfig(config.Proxy.Host, config.Proxy.Port, auth, config.Proxy.NoProxyHosts)
		if err != nil {
			log.WithError(err).Warn("ignoring proxy configuration")
		} else {
			factory.Proxy = proxy
		}
	}
	goal.ClientFactory = factory
	return goal
}

func (o *options) project() (staging.Project, error) {
	pom := o.pom
	if pom == "" && o.groupId == "" {
		candidate := filepath.Join(o.executionRoot, "pom.xml")
		if _, err := os.Stat(candidate); err == nil {
			pom = candidate
		}
	}
	project := staging.Project{}
	if pom != "" {
		loaded, err := staging.LoadPom(pom)
		if err != nil {
			return project, &staging.ExecutionError{Err: err}
		}
		project = *loaded
	}
	overrides := []struct {
		target *string
		value  string
	}{
		{&project.GroupId, o.groupId},
		{&project.ArtifactId, o.artifactId},
		{&project.Version, o.version},
		{&project.Packaging, o.packaging},
		{&project.File, o.file},
	}
	for _, override := range overrides {
		if override.value != "" {
			*override.target = override.value
		}
	}
	for _, spec := range o.attach {
		artifact, err := staging.ParseAttachment(spec)
		if err != nil {
			return project, &staging.ExecutionError{Err: err}
		}
		project.Attached = append(project.Attached, artifact)
	}
	return project, nil
}

func runDeploy(ctx context.Context, o *options, goal staging.Goal) (interface{}, error) {
	project, err := o.project()
	if err != nil {
		return nil, err
	}
	deploy := &staging.DeployGoal{
		Goal:       goal,
		Repository: o.repository,
		Tag:        o.tag,
		TagFile:    o.tagFile,
		Skip:       o.skip,
		Defer:      o.deferDeploy,
		Project:    project,
	}
	return deploy.Execute(ctx)
}

func runUpload(ctx context.Context, o *options, goal staging.Goal) (interface{}, error) {
	project, err := o.project()
	if err != nil {
		return nil, err
	}
	upload := &staging.UploadGoal{
		Goal:       goal,
		Repository: o.repository,
		Tag:        o.tag,
		ArtifactId: project.ArtifactId,
		Version:    project.Version,
	}
	return upload.Execute(ctx)
}

func runMove(ctx context.Context, o *options, goal staging.Goal) (interface{}, error) {
	move := &staging.MoveGoal{
		Goal:                  goal,
		DestinationRepository: o.destinationRepository,
		SourceRepository:      o.sourceRepository,
		Repository:            o.repository,
		Tag:                   o.tag,
	}
	return move.Execute(ctx)
}

func runDelete(ctx context.Context, o *options, goal staging.Goal) (interface{}, error) {
	return (&staging.DeleteGoal{Goal: goal, Tag: o.tag}).Execute(ctx)
}

func runPrepareDeploy(ctx context.Context, o *options, goal staging.Goal) (interface{}, error) {
	project, err := o.project()
	if err != nil {
		return nil, err
	}
	prepare := &staging.PrepareDeployGoal{Goal: goal, Project: project, DeploySkipPropertyName: o.deploySkipProperty}
	if _, err := prepare.Execute(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

func runTag(remove bool) func(context.Context, *options, staging.Goal) (interface{}, error) {
	return func(ctx context.Context, o *options, goal staging.Goal) (interface{}, error) {
		return (&staging.TagGoal{Goal: goal, Tag: o.tag, Search: o.search, Remove: remove}).Execute(ctx)
	}
}

func runStatus(ctx context.Context, _ *options, goal staging.Goal) (interface{}, error) {
	client, err := goal.Client()
	if err != nil {
		return nil, err
	}
	version, err := client.GetVersion(ctx)
	if err != nil {
		return nil, &staging.FailureError{Err: err}
	}
	return version, nil
}

func runRepositories(ctx context.Context, _ *options, goal staging.Goal) (interface{}, error) {
	client, err := goal.Client()
	if err != nil {
		return nil, err
	}
	repositories, err := client.GetRepositories(ctx)
	if err != nil {
		return nil, &staging.FailureError{Err: err}
	}
	return repositories, nil
}
