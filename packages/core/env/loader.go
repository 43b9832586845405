package env

// LoadVariables merges variables from the config file with those of an
// optional .env file. Entries from the .env file win.
func LoadVariables(configVars map[string]string, envFile string) (map[string]string, error) {
	vars := make(map[string]string, len(configVars))
	for k, v := range configVars {
		vars[k] = v
	}

	if envFile == "" {
		return vars, nil
	}

	fileVars, err := LoadDotEnv(envFile)
	if err != nil {
		return nil, err
	}
	for k, v := range fileVars {
		vars[k] = v
	}
	return vars, nil
}
