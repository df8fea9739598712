package i18n

var ptBRMessages = map[Code]string{
	CodeUnknown:           "Algo deu errado.",
	CodeLibraryUnreadable: "A biblioteca de histórias em {{.path}} não pôde ser lida.",
	CodeStoryNotFound:     "A história {{.story}} não foi encontrada.",
	CodeManifestInvalid:   "O manifesto {{.path}} é inválido: {{.detail}}",
	CodeScriptLoad:        "Os scripts em {{.path}} não puderam ser lidos: {{.detail}}",
	CodeScriptParse:       "O script {{.module}} tem um erro de sintaxe: {{.detail}}",
	CodeEngineInit:        "O motor da história não pôde iniciar: {{.detail}}",
	CodeEntryNotFound:     "A história não tem a função {{.function}} em {{.module}}.",
	CodeContractViolation: "O script da história quebrou o contrato do runtime em {{.builtin}}: {{.detail}}",
}
