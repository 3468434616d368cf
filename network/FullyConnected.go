package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Config describes the shape of a fully connected block. This is the
// declarative network configuration consumed when constructing
// policies: nothing here computes, it only enumerates the recognized
// knobs of a block.
type Config struct {
	InputDim   int
	OutputDim  int
	HiddenDims []int
	Activation *Activation // activation of each hidden layer
	Softmax    bool        // whether outputs pass through a softmax
	Init       InitConfig
}

// Validate returns an error describing why the configuration is
// invalid, or nil if it is valid.
func (c Config) Validate() error {
	if c.InputDim < 1 {
		return fmt.Errorf("validate: input dim must be positive "+
			"\n\thave(%v)", c.InputDim)
	}
	if c.OutputDim < 1 {
		return fmt.Errorf("validate: output dim must be positive "+
			"\n\thave(%v)", c.OutputDim)
	}
	for i, dim := range c.HiddenDims {
		if dim < 1 {
			return fmt.Errorf("validate: hidden dim %v must be positive "+
				"\n\thave(%v)", i, dim)
		}
	}
	if c.Activation == nil {
		return fmt.Errorf("validate: nil activation")
	}
	if err := c.Init.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return nil
}

// fcLayer implements a fully connected layer of a block
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x = G.Must(G.Mul(x, f.weights))

	// Broadcast the bias weights to all samples along the batch
	// dimension
	x = G.Must(G.BroadcastAdd(x, f.bias, nil, []byte{0}))

	if f.act == nil {
		return x, nil
	}
	return f.act.fwd(x)
}

// Block is a fully connected block added to a Gorgonia graph. The
// block owns its input node; callers feed data with SetInput and read
// results from Output after running a VM over the graph.
type Block struct {
	g      *G.ExprGraph
	layers []*fcLayer
	input  *G.Node

	prediction *G.Node
	predVal    G.Value

	batchSize int
	inputDim  int
	outputDim int
}

// NewBlock creates a fully connected block described by config and
// adds it to graph g. The prefix disambiguates node names when a
// graph holds several blocks.
func NewBlock(config Config, g *G.ExprGraph, batchSize int,
	prefix string) (*Block, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("newBlock: %v", err)
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("newBlock: batch size must be positive "+
			"\n\thave(%v)", batchSize)
	}

	init, err := config.Init.Create()
	if err != nil {
		return nil, fmt.Errorf("newBlock: %v", err)
	}

	input := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batchSize, config.InputDim),
		G.WithName(prefix+"input"), G.WithInit(G.Zeroes()))

	// The final layer is linear; hidden layers use the configured
	// activation
	dims := append([]int{config.InputDim}, config.HiddenDims...)
	dims = append(dims, config.OutputDim)

	layers := make([]*fcLayer, len(dims)-1)
	for i := 0; i < len(dims)-1; i++ {
		var act *Activation
		if i < len(dims)-2 {
			act = config.Activation
		}
		layers[i] = &fcLayer{
			weights: G.NewMatrix(g, tensor.Float64,
				G.WithShape(dims[i], dims[i+1]),
				G.WithName(fmt.Sprintf("%vL%vW", prefix, i)),
				G.WithInit(init)),
			bias: G.NewVector(g, tensor.Float64,
				G.WithShape(dims[i+1]),
				G.WithName(fmt.Sprintf("%vL%vB", prefix, i)),
				G.WithInit(G.Zeroes())),
			act: act,
		}
	}

	block := &Block{
		g:         g,
		layers:    layers,
		input:     input,
		batchSize: batchSize,
		inputDim:  config.InputDim,
		outputDim: config.OutputDim,
	}

	pred, err := block.fwd(input)
	if err != nil {
		return nil, fmt.Errorf("newBlock: could not compute forward "+
			"pass: %v", err)
	}
	if config.Softmax {
		pred = G.Must(G.SoftMax(pred, 1))
	}
	block.prediction = pred
	G.Read(block.prediction, &block.predVal)

	return block, nil
}

// fwd runs the forward pass of all layers on x.
func (b *Block) fwd(x *G.Node) (*G.Node, error) {
	var err error
	for _, layer := range b.layers {
		if x, err = layer.fwd(x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// Graph returns the computational graph holding the Block.
func (b *Block) Graph() *G.ExprGraph {
	return b.g
}

// SetInput sets the data of the Block's input node.
func (b *Block) SetInput(input []float64) error {
	if len(input) != b.inputDim*b.batchSize {
		return fmt.Errorf("setInput: invalid number of inputs "+
			"\n\twant(%v) \n\thave(%v)", b.inputDim*b.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(b.input.Shape()...),
	)
	return G.Let(b.input, inputTensor)
}

// Prediction returns the node holding the Block's outputs.
func (b *Block) Prediction() *G.Node {
	return b.prediction
}

// Output returns the value of the prediction node as of the last VM
// run.
func (b *Block) Output() G.Value {
	return b.predVal
}

// BatchSize returns the number of rows of the input node.
func (b *Block) BatchSize() int {
	return b.batchSize
}

// Features returns the number of input features of the Block.
func (b *Block) Features() int {
	return b.inputDim
}

// Outputs returns the number of outputs of the Block.
func (b *Block) Outputs() int {
	return b.outputDim
}

// Learnables returns the nodes holding the Block's weights.
func (b *Block) Learnables() G.Nodes {
	learnables := make(G.Nodes, 0, 2*len(b.layers))
	for _, layer := range b.layers {
		learnables = append(learnables, layer.weights, layer.bias)
	}
	return learnables
}

// Model returns the value-gradient pairs the solver adapts.
func (b *Block) Model() []G.ValueGrad {
	learnables := b.Learnables()
	model := make([]G.ValueGrad, len(learnables))
	for i, learnable := range learnables {
		model[i] = learnable
	}
	return model
}

// State returns a flat copy of all weights of the Block, in learnable
// order.
func (b *Block) State() []float64 {
	state := make([]float64, 0)
	for _, learnable := range b.Learnables() {
		state = append(state, learnable.Value().Data().([]float64)...)
	}
	return state
}

// SetState overwrites the Block's weights with a flat weight vector
// previously produced by State on a block of identical shape.
func (b *Block) SetState(state []float64) error {
	offset := 0
	for _, learnable := range b.Learnables() {
		data := learnable.Value().Data().([]float64)
		if offset+len(data) > len(state) {
			return fmt.Errorf("setState: invalid state size \n\twant(>=%v) "+
				"\n\thave(%v)", offset+len(data), len(state))
		}
		newTensor := tensor.New(
			tensor.WithBacking(append([]float64(nil),
				state[offset:offset+len(data)]...)),
			tensor.WithShape(learnable.Shape()...),
		)
		if err := G.Let(learnable, newTensor); err != nil {
			return fmt.Errorf("setState: %v", err)
		}
		offset += len(data)
	}
	if offset != len(state) {
		return fmt.Errorf("setState: invalid state size \n\twant(%v) "+
			"\n\thave(%v)", offset, len(state))
	}
	return nil
}
