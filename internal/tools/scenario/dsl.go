package scenario

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scenarioTypeName = "scenario"

// Scenario is a scripted playthrough of one story.
type Scenario struct {
	Name  string
	Story string
	Steps []Step
}

// Step is one pick or expectation.
type Step struct {
	Kind string
	Args map[string]any
}

// Step kinds.
const (
	StepPick          = "pick"
	StepExpectDisplay = "expect_display"
	StepExpectChoices = "expect_choices"
	StepExpectState   = "expect_state"
	StepExpectFlag    = "expect_flag"
	StepExpectInt     = "expect_int"
	StepExpectFloat   = "expect_float"
	StepExpectSteps   = "expect_steps"
)

// LoadScenarioFromFile runs a scenario script and returns the Scenario it
// builds. The script must return the value created by Scenario.new.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerLuaTypes(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	return finishLoad(state, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

// LoadScenario is LoadScenarioFromFile for an in-memory script.
func LoadScenario(name, source string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerLuaTypes(state)

	if err := lua.LoadBuffer(state, source, "="+name, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	return finishLoad(state, name)
}

func finishLoad(state *lua.State, fallbackName string) (*Scenario, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = fallbackName
	}
	return scenario, nil
}

func registerLuaTypes(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)

	state.NewTable()
	lua.SetFunctions(state, scenarioConstructor, 0)
	state.SetGlobal("Scenario")
}

var scenarioConstructor = []lua.RegistryFunction{
	{Name: "new", Function: scenarioNew},
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	scenario := &Scenario{Name: name}
	state.PushUserData(scenario)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "story", Function: scenarioStory},
	{Name: "pick", Function: scenarioPick},
	{Name: "expect_display", Function: scenarioExpectDisplay},
	{Name: "expect_choices", Function: scenarioExpectChoices},
	{Name: "expect_state", Function: scenarioExpectState},
	{Name: "expect_flag", Function: scenarioExpectFlag},
	{Name: "expect_int", Function: scenarioExpectInt},
	{Name: "expect_float", Function: scenarioExpectFloat},
	{Name: "expect_steps", Function: scenarioExpectSteps},
}

func scenarioStory(state *lua.State) int {
	scenario := checkScenario(state)
	scenario.Story = lua.CheckString(state, 2)
	return chain(state)
}

// scenarioPick accepts a zero-based index or a choice label, plus an
// optional table such as {violation = "unknown int"}.
func scenarioPick(state *lua.State) int {
	scenario := checkScenario(state)
	data := optionalTable(state, 3)
	switch state.TypeOf(2) {
	case lua.TypeNumber:
		data["index"] = lua.CheckInteger(state, 2)
	case lua.TypeString:
		data["label"] = lua.CheckString(state, 2)
	default:
		lua.ArgumentError(state, 2, "index or label expected")
		return 0
	}
	appendStep(scenario, StepPick, data)
	return chain(state)
}

func scenarioExpectDisplay(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, StepExpectDisplay, map[string]any{"contains": lua.CheckString(state, 2)})
	return chain(state)
}

func scenarioExpectChoices(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	n := state.RawLength(2)
	labels := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		state.RawGetInt(2, i)
		label, ok := state.ToString(-1)
		state.Pop(1)
		if !ok {
			lua.ArgumentError(state, 2, "labels must be strings")
			return 0
		}
		labels = append(labels, label)
	}
	appendStep(scenario, StepExpectChoices, map[string]any{"labels": labels})
	return chain(state)
}

func scenarioExpectState(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, StepExpectState, map[string]any{"state": strings.ToUpper(lua.CheckString(state, 2))})
	return chain(state)
}

func scenarioExpectFlag(state *lua.State) int {
	scenario := checkScenario(state)
	name := lua.CheckString(state, 2)
	lua.CheckType(state, 3, lua.TypeBoolean)
	appendStep(scenario, StepExpectFlag, map[string]any{"name": name, "value": state.ToBoolean(3)})
	return chain(state)
}

func scenarioExpectInt(state *lua.State) int {
	scenario := checkScenario(state)
	name := lua.CheckString(state, 2)
	appendStep(scenario, StepExpectInt, map[string]any{"name": name, "value": lua.CheckInteger(state, 3)})
	return chain(state)
}

func scenarioExpectFloat(state *lua.State) int {
	scenario := checkScenario(state)
	name := lua.CheckString(state, 2)
	appendStep(scenario, StepExpectFloat, map[string]any{"name": name, "value": lua.CheckNumber(state, 3)})
	return chain(state)
}

func scenarioExpectSteps(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, StepExpectSteps, map[string]any{"value": lua.CheckInteger(state, 2)})
	return chain(state)
}

// chain returns the receiver so calls can be written run:pick(0):pick(1).
func chain(state *lua.State) int {
	state.PushValue(1)
	return 1
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func appendStep(scenario *Scenario, kind string, data map[string]any) int {
	if scenario == nil {
		return -1
	}
	if data == nil {
		data = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: data})
	return len(scenario.Steps) - 1
}

func optionalTable(state *lua.State, index int) map[string]any {
	if state.IsNoneOrNil(index) || state.TypeOf(index) != lua.TypeTable {
		return map[string]any{}
	}
	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	default:
		return nil
	}
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
